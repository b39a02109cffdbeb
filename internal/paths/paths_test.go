package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayoutHonorsEnvOverrides(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data")
	cache := filepath.Join(t.TempDir(), "cache")
	config := filepath.Join(t.TempDir(), "config")
	t.Setenv("NODEUP_DATA_HOME", data)
	t.Setenv("NODEUP_CACHE_HOME", cache)
	t.Setenv("NODEUP_CONFIG_HOME", config)

	l, err := NewLayout()
	require.NoError(t, err)
	assert.Equal(t, data, l.DataRoot)
	assert.Equal(t, cache, l.CacheRoot)
	assert.Equal(t, config, l.ConfigRoot)
}

func TestNewLayoutCreatesRootDirectories(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data")
	t.Setenv("NODEUP_DATA_HOME", data)
	t.Setenv("NODEUP_CACHE_HOME", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("NODEUP_CONFIG_HOME", filepath.Join(t.TempDir(), "config"))

	_, err := NewLayout()
	require.NoError(t, err)

	fi, err := os.Stat(data)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestCanonicalizeVTagAddsLeadingV(t *testing.T) {
	assert.Equal(t, "v20.11.0", CanonicalizeVTag("20.11.0"))
	assert.Equal(t, "v20.11.0", CanonicalizeVTag("v20.11.0"))
}

func TestLayoutDerivedPaths(t *testing.T) {
	t.Setenv("NODEUP_DATA_HOME", filepath.Join(t.TempDir(), "data"))
	t.Setenv("NODEUP_CACHE_HOME", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("NODEUP_CONFIG_HOME", filepath.Join(t.TempDir(), "config"))

	l, err := NewLayout()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(l.DataRoot, "toolchains", "v20.11.0"), l.RuntimeDir("20.11.0"))
	assert.Equal(t, filepath.Join(l.CacheRoot, "release-index.json"), l.ReleaseIndexCachePath())
	assert.Equal(t, filepath.Join(l.ConfigRoot, "settings.toml"), l.SettingsPath())
	assert.Equal(t, filepath.Join(l.ConfigRoot, "overrides.toml"), l.OverridesPath())
}
