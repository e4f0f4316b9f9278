package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 3*time.Second, cfg.Backend.HealthTimeout)
	assert.Equal(t, "sqlite", cfg.Datastore.Driver)
	assert.Equal(t, 1000, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Sync.MinInterval)
	assert.Equal(t, 10*time.Minute, cfg.Adaptive.InitialInterval)
	assert.Equal(t, 5*time.Minute, cfg.Adaptive.MinInterval)
	assert.Equal(t, time.Hour, cfg.Adaptive.MaxInterval)
	assert.Equal(t, 5*time.Minute, cfg.Adaptive.GrowStep)
	assert.Equal(t, time.Minute, cfg.Adaptive.ShrinkStep)
	assert.Equal(t, int64(100), cfg.Adaptive.HighActivityThreshold)
	assert.Equal(t, 2, cfg.Adaptive.IdleTicksBeforeGrow)
	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	// Given: a project config with a few overrides
	isolate(t)
	dir := t.TempDir()
	content := `
datastore:
  dsn: /var/lib/lms/forum.db
sync:
  batch_size: 250
  min_interval: 30s
  watch_datastore: true
cache:
  capacity: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(content), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: overrides apply and untouched values keep defaults
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/lms/forum.db", cfg.Datastore.DSN)
	assert.Equal(t, 250, cfg.Sync.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Sync.MinInterval)
	assert.True(t, cfg.Sync.WatchDatastore)
	assert.Equal(t, 10, cfg.Cache.Capacity)
	assert.Equal(t, 3, cfg.Sync.Concurrency)
}

func TestLoad_UserConfigThenProjectConfig(t *testing.T) {
	// Given: a user config and a project config that both set the DSN
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "lmssearch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "lmssearch", "config.yaml"),
		[]byte("datastore:\n  dsn: user.db\ncache:\n  capacity: 7\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lmssearch.yml"),
		[]byte("datastore:\n  dsn: project.db\n"), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: project wins, user values fill the rest
	require.NoError(t, err)
	assert.Equal(t, "project.db", cfg.Datastore.DSN)
	assert.Equal(t, 7, cfg.Cache.Capacity)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("server:\n  log_level: warn\n"), 0o644))

	t.Setenv("LMSSEARCH_LOG_LEVEL", "debug")
	t.Setenv("LMSSEARCH_DATASTORE_DSN", "env.db")
	t.Setenv("LMSSEARCH_SYNC_MIN_INTERVAL", "1m")
	t.Setenv("LMSSEARCH_SYNC_BACKGROUND", "false")
	t.Setenv("LMSSEARCH_CACHE_CAPACITY", "not-a-number")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "env.db", cfg.Datastore.DSN)
	assert.Equal(t, time.Minute, cfg.Sync.MinInterval)
	assert.False(t, cfg.Sync.Background)
	assert.Equal(t, 100, cfg.Cache.Capacity)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("sync: [unclosed"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Datastore.Driver = "postgres" }, "datastore.driver"},
		{"empty dsn", func(c *Config) { c.Datastore.DSN = "" }, "datastore.dsn"},
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }, "sync.batch_size"},
		{"zero concurrency", func(c *Config) { c.Sync.Concurrency = 0 }, "sync.concurrency"},
		{"inverted bounds", func(c *Config) { c.Adaptive.MaxInterval = time.Minute }, "adaptive intervals"},
		{"initial outside bounds", func(c *Config) { c.Adaptive.InitialInterval = 2 * time.Hour }, "initial_interval"},
		{"zero cache", func(c *Config) { c.Cache.Capacity = 0 }, "cache.capacity"},
		{"sse transport", func(c *Config) { c.Server.Transport = "sse" }, "server.transport"},
		{"bad level", func(c *Config) { c.Server.LogLevel = "loud" }, "server.log_level"},
		{"zero timeout", func(c *Config) { c.Backend.HealthTimeout = 0 }, "health_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a config with a non-default interval
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Sync.MinInterval = 90 * time.Second
	cfg.Backend.DataDir = filepath.Join(dir, "idx")

	// When: writing and loading it back
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))
	loaded, err := Load(dir)

	// Then: durations survive as human readable strings
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, loaded.Sync.MinInterval)
	assert.Equal(t, cfg.Backend.DataDir, loaded.Backend.DataDir)
	data, _ := os.ReadFile(filepath.Join(dir, ProjectConfigName))
	assert.Contains(t, string(data), "min_interval: 1m30s")
}

func TestLoad_ExpandsHomeInPaths(t *testing.T) {
	// Given: paths written relative to the home directory
	isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	yaml := "backend:\n  data_dir: ~/indexes\ndatastore:\n  dsn: ~/lms.db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: "~/" is replaced by the home directory
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "indexes"), cfg.Backend.DataDir)
	assert.Equal(t, filepath.Join(home, "lms.db"), cfg.Datastore.DSN)
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}
