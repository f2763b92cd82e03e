// Package config loads and persists boilw configuration.
// Configuration lives at <workspace>/.boilw/config.json and may be overridden
// by BOILW_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all boilw configuration.
type Config struct {
	// Core settings
	Name    string `json:"name"`
	Version string `json:"version"`

	// Flag kernel configuration
	Kernel KernelConfig `json:"kernel"`

	// Knowledge base configuration
	Knowledge KnowledgeConfig `json:"knowledge"`

	// Memory tiers configuration
	Memory MemoryConfig `json:"memory"`

	// Plugins
	Plugins PluginConfig `json:"plugins"`

	// Logging
	Logging LoggingConfig `json:"logging"`
}

// KernelConfig bounds the inference loop.
type KernelConfig struct {
	// MaxTicks aborts Ponder if a fixpoint is not reached.
	MaxTicks int `json:"max_ticks"`
	// FlagLimit caps working memory size.
	FlagLimit int `json:"flag_limit"`
}

// KnowledgeConfig locates the static knowledge base.
type KnowledgeConfig struct {
	// Paths to knowledge files or directories (*.yaml).
	Paths []string `json:"paths"`
	// WatchDebounce controls hot-reload debouncing.
	WatchDebounce string `json:"watch_debounce"`
}

// MemoryConfig configures the memory tiers.
type MemoryConfig struct {
	// SQLite database holding the permanent and episodic tiers.
	DatabasePath string `json:"database_path"`
	// PromoteThreshold is the number of distinct scenes a derivation must
	// recur in before it becomes a promotion candidate.
	PromoteThreshold int `json:"promote_threshold"`
	// SceneLimit bounds ListScenes output.
	SceneLimit int `json:"scene_limit"`
}

// PluginConfig configures the yaegi plugin host.
type PluginConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// LoggingConfig configures category file logging (see internal/logging).
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Level      string          `json:"level"` // debug, info, warn, error
	Categories map[string]bool `json:"categories,omitempty"`
	JSONFormat bool            `json:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "boilw",
		Version: "0.1.0",

		Kernel: KernelConfig{
			MaxTicks:  1000,
			FlagLimit: 100000,
		},

		Knowledge: KnowledgeConfig{
			Paths:         []string{"knowledge"},
			WatchDebounce: "500ms",
		},

		Memory: MemoryConfig{
			DatabasePath:     filepath.Join(".boilw", "boilw.db"),
			PromoteThreshold: 3,
			SceneLimit:       50,
		},

		Plugins: PluginConfig{
			Enabled: false,
			Dir:     filepath.Join(".boilw", "plugins"),
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Path returns the config file location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".boilw", "config.json")
}

// Load loads configuration for a workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to the workspace config path.
func (c *Config) Save(workspace string) error {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("BOILW_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if dir := os.Getenv("BOILW_PLUGIN_DIR"); dir != "" {
		c.Plugins.Dir = dir
		c.Plugins.Enabled = true
	}
	if v := os.Getenv("BOILW_MAX_TICKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Kernel.MaxTicks = n
		}
	}
	if v := os.Getenv("BOILW_PROMOTE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Memory.PromoteThreshold = n
		}
	}
	if v := os.Getenv("BOILW_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// GetWatchDebounce returns the knowledge watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Knowledge.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
