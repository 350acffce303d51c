package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/contracts\nuser: owner\ndebounce: 2s\n"), 0644))

	t.Run("file only", func(t *testing.T) {
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, Config{DataDir: "/srv/contracts", User: "owner", Debounce: 2 * time.Second}, cfg)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("CONTRACTFLOW_USER", "designer")
		t.Setenv("CONTRACTFLOW_WATCH_CACHE", "true")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "designer", cfg.User)
		assert.Equal(t, "/srv/contracts", cfg.DataDir)
		assert.True(t, cfg.WatchCache)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Config{}, cfg)
	})

	t.Run("bad yaml", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("user: [unterminated"), 0644))
		_, err := LoadConfig(bad)
		assert.Error(t, err)
	})
}

func TestConfigOptions(t *testing.T) {
	o := defaultOptions()
	for _, opt := range (Config{User: "owner", Debounce: time.Second, WatchCache: true, Adapter: "memory"}).Options() {
		opt(o)
	}
	assert.Equal(t, "owner", o.user)
	assert.Equal(t, time.Second, o.autosaveDelay)
	assert.True(t, o.watchCache)
	assert.Equal(t, "memory", o.adapter)
}
