package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gopad configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Interpreter behind the execution bridge
	Engine EngineConfig `yaml:"engine"`

	// Structure preview scheduling
	Preview PreviewConfig `yaml:"preview"`

	// Local persistence
	Store StoreConfig `yaml:"store"`

	// Share links
	Share ShareConfig `yaml:"share"`

	// Editor buffer
	Editor EditorConfig `yaml:"editor"`

	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the interpreter.
type EngineConfig struct {
	// Per-call execution timeout
	Timeout string `yaml:"timeout"`

	// How long the front end waits for the engine to become ready
	LoadTimeout string `yaml:"load_timeout"`

	// Import allow-list for submitted code
	AllowedPackages []string `yaml:"allowed_packages"`
}

// PreviewConfig configures the debounced tree preview.
type PreviewConfig struct {
	QuietInterval string `yaml:"quiet_interval"`
}

// StoreConfig configures the sqlite database.
type StoreConfig struct {
	// Relative paths are resolved against the workspace
	DatabasePath string `yaml:"database_path"`
}

// ShareConfig configures share-link generation.
type ShareConfig struct {
	BaseURL         string `yaml:"base_url"`
	MaxDecodedBytes int64  `yaml:"max_decoded_bytes"`
}

// EditorConfig configures the editor buffer.
type EditorConfig struct {
	// Example used when nothing is persisted and no share link is given
	DefaultExample string `yaml:"default_example"`

	// Optional file on disk mirrored into the buffer
	WatchFile string `yaml:"watch_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "gopad",
		Version: "0.4.0",

		Engine: EngineConfig{
			Timeout:     "10s",
			LoadTimeout: "5s",
			AllowedPackages: []string{
				"strings", "strconv", "fmt", "math", "math/rand", "regexp",
				"encoding/json", "encoding/base64", "time", "sort", "slices",
				"maps", "bytes", "errors", "unicode", "unicode/utf8",
			},
		},

		Preview: PreviewConfig{
			QuietInterval: "200ms",
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(".gopad", "gopad.db"),
		},

		Share: ShareConfig{
			BaseURL:         "https://gopad.dev/",
			MaxDecodedBytes: 4 << 20,
		},

		Editor: EditorConfig{
			DefaultExample: "Fibonacci",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the config location inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".gopad", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
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
	if path := os.Getenv("GOPAD_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if base := os.Getenv("GOPAD_SHARE_BASE_URL"); base != "" {
		c.Share.BaseURL = base
	}
	if d := os.Getenv("GOPAD_QUIET_INTERVAL"); d != "" {
		c.Preview.QuietInterval = d
	}
	if v := os.Getenv("GOPAD_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// GetExecutionTimeout returns the per-call execution timeout.
func (c *Config) GetExecutionTimeout() time.Duration {
	return parseDuration(c.Engine.Timeout, 10*time.Second)
}

// GetLoadTimeout returns how long to wait for the engine to become ready.
func (c *Config) GetLoadTimeout() time.Duration {
	return parseDuration(c.Engine.LoadTimeout, 5*time.Second)
}

// GetQuietInterval returns the preview debounce interval.
func (c *Config) GetQuietInterval() time.Duration {
	return parseDuration(c.Preview.QuietInterval, 200*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DatabasePath resolves the database location against the workspace.
func (c *Config) DatabasePath(workspace string) string {
	p := c.Store.DatabasePath
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path must be set")
	}
	if c.Share.BaseURL != "" {
		u, err := url.Parse(c.Share.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid share.base_url: %q", c.Share.BaseURL)
		}
	}
	if c.Share.MaxDecodedBytes < 0 {
		return fmt.Errorf("share.max_decoded_bytes must not be negative")
	}
	for _, s := range []string{c.Engine.Timeout, c.Engine.LoadTimeout, c.Preview.QuietInterval} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
	}
	return nil
}
