package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/lmssearch/internal/config"
)

func TestConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the template written as a project config
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigName), []byte(ConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(dir)

	// Then: it describes exactly the built-in defaults
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig(), cfg)
	assert.Equal(t, filepath.Join(home, ".lmssearch", "indexes"), cfg.Backend.DataDir)
}
