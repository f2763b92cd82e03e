package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "boilw", cfg.Name)
	assert.Equal(t, 1000, cfg.Kernel.MaxTicks)
	assert.Equal(t, 3, cfg.Memory.PromoteThreshold)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestSaveAndReload(t *testing.T) {
	ws := t.TempDir()

	cfg := DefaultConfig()
	cfg.Kernel.MaxTicks = 42
	cfg.Knowledge.Paths = []string{"kb/base.yaml", "kb/extra"}
	require.NoError(t, cfg.Save(ws))

	loaded, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Kernel.MaxTicks)
	assert.Equal(t, []string{"kb/base.yaml", "kb/extra"}, loaded.Knowledge.Paths)
}

func TestLoadRejectsMalformedConfig(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".boilw"), 0755))
	require.NoError(t, os.WriteFile(Path(ws), []byte("{not json"), 0644))

	_, err := Load(ws)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOILW_DB", "/tmp/override.db")
	t.Setenv("BOILW_MAX_TICKS", "7")
	t.Setenv("BOILW_DEBUG", "1")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Memory.DatabasePath)
	assert.Equal(t, 7, cfg.Kernel.MaxTicks)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("BOILW_MAX_TICKS", "not-a-number")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Kernel.MaxTicks)
}

func TestGetWatchDebounce(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "500ms", cfg.Knowledge.WatchDebounce)

	cfg.Knowledge.WatchDebounce = "2s"
	assert.Equal(t, float64(2), cfg.GetWatchDebounce().Seconds())

	cfg.Knowledge.WatchDebounce = "garbage"
	assert.Equal(t, 0.5, cfg.GetWatchDebounce().Seconds())
}
