package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetState clears package-level logger state between tests.
func resetState() {
	CloseAll()
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	logLevel = LevelInfo
}

func TestDisabledByDefault(t *testing.T) {
	defer resetState()

	tempDir := t.TempDir()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsDebugMode() {
		t.Error("debug mode should be off without a config file")
	}

	// Logging should be a silent no-op: no logs directory created.
	Kernel("this should go nowhere")
	if _, err := os.Stat(filepath.Join(tempDir, ".boilw", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestCategoriesLogWhenEnabled(t *testing.T) {
	defer resetState()

	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".boilw")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true
		}
	}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Kernel("tick %d fired %d rules", 1, 3)
	KnowledgeDebug("compiled %d rules", 5)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".boilw", "logs"))
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}

	var sawKernel, sawKnowledge bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "kernel") {
			sawKernel = true
		}
		if strings.Contains(e.Name(), "knowledge") {
			sawKnowledge = true
		}
	}
	if !sawKernel {
		t.Error("expected a kernel log file")
	}
	if !sawKnowledge {
		t.Error("expected a knowledge log file")
	}
}

func TestCategoryFilter(t *testing.T) {
	defer resetState()

	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".boilw")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "info",
			"debug_mode": true,
			"categories": {"kernel": true, "watch": false}
		}
	}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsCategoryEnabled(CategoryKernel) {
		t.Error("kernel category should be enabled")
	}
	if IsCategoryEnabled(CategoryWatch) {
		t.Error("watch category should be disabled")
	}
	// Unlisted categories default to enabled in debug mode.
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestTimerDoesNotPanicWhenDisabled(t *testing.T) {
	defer resetState()

	timer := StartTimer(CategoryKernel, "ponder")
	if d := timer.Stop(); d < 0 {
		t.Errorf("negative duration: %v", d)
	}
}
