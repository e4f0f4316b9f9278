// Package config loads lmssearch configuration from defaults, YAML files and
// LMSSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".lmssearch.yaml"

// Config represents the complete lmssearch configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Datastore DatastoreConfig `yaml:"datastore" json:"datastore"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Adaptive  AdaptiveConfig  `yaml:"adaptive" json:"adaptive"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// BackendConfig configures the embedded search backend.
type BackendConfig struct {
	// DataDir holds one bleve index per collection. Empty keeps indexes in memory.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// HealthTimeout bounds a single health probe.
	HealthTimeout time.Duration `yaml:"health_timeout" json:"health_timeout"`
}

// DatastoreConfig configures the relational source of truth.
type DatastoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// SyncConfig configures sync cycles.
type SyncConfig struct {
	BatchSize   int           `yaml:"batch_size" json:"batch_size"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	// Background starts the adaptive loop when serving.
	Background bool `yaml:"background" json:"background"`
	// WatchDatastore wakes the adaptive loop early when the SQLite file changes.
	WatchDatastore bool          `yaml:"watch_datastore" json:"watch_datastore"`
	WatchDebounce  time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// AdaptiveConfig tunes the background loop interval.
type AdaptiveConfig struct {
	InitialInterval       time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MinInterval           time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval           time.Duration `yaml:"max_interval" json:"max_interval"`
	GrowStep              time.Duration `yaml:"grow_step" json:"grow_step"`
	ShrinkStep            time.Duration `yaml:"shrink_step" json:"shrink_step"`
	HighActivityThreshold int64         `yaml:"high_activity_threshold" json:"high_activity_threshold"`
	IdleTicksBeforeGrow   int           `yaml:"idle_ticks_before_grow" json:"idle_ticks_before_grow"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	// MetricsAddr serves Prometheus metrics when set (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			DataDir:       defaultDataDir(),
			HealthTimeout: 3 * time.Second,
		},
		Datastore: DatastoreConfig{
			Driver: "sqlite",
			DSN:    "lms.db",
		},
		Sync: SyncConfig{
			BatchSize:      1000,
			Concurrency:    3,
			MinInterval:    10 * time.Minute,
			Background:     true,
			WatchDatastore: false,
			WatchDebounce:  2 * time.Second,
		},
		Adaptive: AdaptiveConfig{
			InitialInterval:       10 * time.Minute,
			MinInterval:           5 * time.Minute,
			MaxInterval:           time.Hour,
			GrowStep:              5 * time.Minute,
			ShrinkStep:            time.Minute,
			HighActivityThreshold: 100,
			IdleTicksBeforeGrow:   2,
		},
		Cache: CacheConfig{
			Capacity: 100,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lmssearch", "indexes")
	}
	return filepath.Join(home, ".lmssearch", "indexes")
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/lmssearch/config.yaml or ~/.config/lmssearch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lmssearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "lmssearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "lmssearch", "config.yaml")
}

// Load loads configuration for dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/lmssearch/config.yaml)
//  3. Project config (.lmssearch.yaml in dir)
//  4. Environment variables (LMSSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.Backend.DataDir = expandHome(cfg.Backend.DataDir)
	cfg.Datastore.DSN = expandHome(cfg.Datastore.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir loads .lmssearch.yaml, falling back to .lmssearch.yml.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{ProjectConfigName, ".lmssearch.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
// Boolean switches are only ever turned on by a file; env vars turn them off.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Backend.DataDir, other.Backend.DataDir)
	mergeDuration(&c.Backend.HealthTimeout, other.Backend.HealthTimeout)

	mergeString(&c.Datastore.Driver, other.Datastore.Driver)
	mergeString(&c.Datastore.DSN, other.Datastore.DSN)

	mergeInt(&c.Sync.BatchSize, other.Sync.BatchSize)
	mergeInt(&c.Sync.Concurrency, other.Sync.Concurrency)
	mergeDuration(&c.Sync.MinInterval, other.Sync.MinInterval)
	mergeDuration(&c.Sync.WatchDebounce, other.Sync.WatchDebounce)
	if other.Sync.WatchDatastore {
		c.Sync.WatchDatastore = true
	}

	mergeDuration(&c.Adaptive.InitialInterval, other.Adaptive.InitialInterval)
	mergeDuration(&c.Adaptive.MinInterval, other.Adaptive.MinInterval)
	mergeDuration(&c.Adaptive.MaxInterval, other.Adaptive.MaxInterval)
	mergeDuration(&c.Adaptive.GrowStep, other.Adaptive.GrowStep)
	mergeDuration(&c.Adaptive.ShrinkStep, other.Adaptive.ShrinkStep)
	if other.Adaptive.HighActivityThreshold != 0 {
		c.Adaptive.HighActivityThreshold = other.Adaptive.HighActivityThreshold
	}
	mergeInt(&c.Adaptive.IdleTicksBeforeGrow, other.Adaptive.IdleTicksBeforeGrow)

	mergeInt(&c.Cache.Capacity, other.Cache.Capacity)

	mergeString(&c.Server.Transport, other.Server.Transport)
	mergeString(&c.Server.LogLevel, other.Server.LogLevel)
	mergeString(&c.Server.MetricsAddr, other.Server.MetricsAddr)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LMSSEARCH_DATA_DIR"); v != "" {
		c.Backend.DataDir = v
	}
	if v := os.Getenv("LMSSEARCH_DATASTORE_DRIVER"); v != "" {
		c.Datastore.Driver = v
	}
	if v := os.Getenv("LMSSEARCH_DATASTORE_DSN"); v != "" {
		c.Datastore.DSN = v
	}
	if v := os.Getenv("LMSSEARCH_SYNC_MIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.MinInterval = d
		}
	}
	if v := os.Getenv("LMSSEARCH_SYNC_BACKGROUND"); v != "" {
		c.Sync.Background = parseBool(v)
	}
	if v := os.Getenv("LMSSEARCH_WATCH_DATASTORE"); v != "" {
		c.Sync.WatchDatastore = parseBool(v)
	}
	if v := os.Getenv("LMSSEARCH_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.Capacity = n
		}
	}
	if v := os.Getenv("LMSSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("LMSSEARCH_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// Validate checks the final configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Datastore.Driver) {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("datastore.driver must be 'sqlite' or 'sqlite3', got %s", c.Datastore.Driver)
	}
	if c.Datastore.DSN == "" {
		return fmt.Errorf("datastore.dsn must not be empty")
	}

	if c.Backend.HealthTimeout <= 0 {
		return fmt.Errorf("backend.health_timeout must be positive, got %s", c.Backend.HealthTimeout)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.MinInterval < 0 {
		return fmt.Errorf("sync.min_interval must be non-negative, got %s", c.Sync.MinInterval)
	}

	a := c.Adaptive
	if a.MinInterval <= 0 || a.MaxInterval < a.MinInterval {
		return fmt.Errorf("adaptive intervals must satisfy 0 < min_interval <= max_interval, got %s..%s", a.MinInterval, a.MaxInterval)
	}
	if a.InitialInterval < a.MinInterval || a.InitialInterval > a.MaxInterval {
		return fmt.Errorf("adaptive.initial_interval %s must lie within [%s, %s]", a.InitialInterval, a.MinInterval, a.MaxInterval)
	}
	if a.GrowStep <= 0 || a.ShrinkStep <= 0 {
		return fmt.Errorf("adaptive grow_step and shrink_step must be positive")
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
