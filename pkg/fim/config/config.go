// Package config loads the agent configuration from file, environment, and
// defaults, and resolves the XDG paths used for agent state.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// SinkConfig configures event delivery to the collector.
type SinkConfig struct {
	// Endpoint is the collector base URL. Empty disables delivery.
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BaselineConfig configures baseline persistence.
type BaselineConfig struct {
	// Path is the baseline file. Empty derives a per-root path under
	// $XDG_DATA_HOME/fim.
	Path string `mapstructure:"path"`
}

// CacheConfig configures the hash cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// JournalConfig configures the local cycle journal.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config is the full agent configuration.
type Config struct {
	Root           string        `mapstructure:"root"`
	Interval       time.Duration `mapstructure:"interval"`
	Workers        int           `mapstructure:"workers"`
	FollowSymlinks bool          `mapstructure:"follow_symlinks"`
	Exclude        []string      `mapstructure:"exclude"`
	FileTimeout    time.Duration `mapstructure:"file_timeout"`
	WatchEnabled   bool          `mapstructure:"watch_enabled"`

	Baseline BaselineConfig `mapstructure:"baseline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from $XDG_CONFIG_HOME/fim/config.yaml and
// FIM_-prefixed environment variables, applying defaults for everything
// unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix("FIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}

	return &cfg, nil
}

// setDefaults registers the default for every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("root", DefaultPath)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("file_timeout", DefaultFileTimeout)
	v.SetDefault("watch_enabled", false)

	v.SetDefault("baseline.path", "")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.retention_days", DefaultRetentionDays)
	v.SetDefault("sink.endpoint", "")
	v.SetDefault("sink.timeout", DefaultSinkTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.components", map[string]string{
		"monitor":  "info",
		"snapshot": "info",
		"watcher":  "warn",
	})
}

// Validate checks the startup invariants that must fail before the loop
// starts: the root must be an existing directory and the baseline location
// must be writable. Everything else is soft.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("monitored root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("monitored root %s is not a directory", c.Root)
	}

	dir := filepath.Dir(c.BaselinePath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("baseline directory: %w", err)
	}
	return nil
}

// BaselinePath returns the configured baseline file, or the default
// per-root path under the data directory.
func (c *Config) BaselinePath() string {
	if c.Baseline.Path != "" {
		return c.Baseline.Path
	}
	return filepath.Join(DataDir(), rootKey(c.Root)+".baseline.json")
}

// CachePath returns the configured hash cache directory, or the default
// per-root path under the cache directory.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(CacheDir(), rootKey(c.Root))
}

// JournalPath returns the configured journal directory, or the default
// per-root path under the data directory.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(DataDir(), rootKey(c.Root)+".journal")
}

// rootKey derives a short stable identifier for a monitored root so each
// root gets its own baseline, cache, and journal.
func rootKey(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// ConfigDir returns $XDG_CONFIG_HOME/fim.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "fim")
}

// DataDir returns $XDG_DATA_HOME/fim for baselines and journals.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "fim")
}

// CacheDir returns $XDG_CACHE_HOME/fim for the hash cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "fim")
}

// StateDir returns $XDG_STATE_HOME/fim for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "fim")
}

// WriteDefault writes a commented default config file if none exists.
func WriteDefault() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# File integrity monitor configuration

# Directory tree to monitor
root: %s

# Scan interval
interval: %s

# File-hashing worker pool size
workers: %d

# Follow symlinks during scans (default: skip them)
follow_symlinks: false

# Patterns excluded from every scan
exclude:
  - .git
  - "*.baseline.json"
  - .fim-journal

# Per-file hashing timeout
file_timeout: %s

# Wake scans early on filesystem activity (fsnotify)
watch_enabled: false

# Baseline persistence (empty path derives one per root under $XDG_DATA_HOME/fim)
baseline:
  path: ""

# Hash cache: skip re-hashing files whose size and mtime are unchanged
cache:
  enabled: true
  path: ""

# Local journal of cycles that produced events
journal:
  enabled: true
  path: ""
  retention_days: %d

# Event delivery (empty endpoint disables it)
sink:
  endpoint: ""
  timeout: %s

# Logging
logging:
  level: info
  path: ""
  components:
    monitor: info
    snapshot: info
    watcher: warn
`, DefaultPath, DefaultInterval, DefaultWorkers, DefaultFileTimeout, DefaultRetentionDays, DefaultSinkTimeout)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
