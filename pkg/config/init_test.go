package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{"# PDC Region Server Configuration File", "logging:", "server:", "cache:", "transfer:", "max_size: 96GB"} {
		assert.Contains(t, string(content), section)
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal(content, &cfg))

	_, err = InitConfig(false)
	assert.ErrorContains(t, err, "already exists")

	_, err = InitConfig(true)
	assert.NoError(t, err)
}

func TestInitConfigToPathLoads(t *testing.T) {
	clearLegacyEnv(t)
	path := filepath.Join(t.TempDir(), "etc", "pdc.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheMaxSize, cfg.Cache.MaxSize)
}
