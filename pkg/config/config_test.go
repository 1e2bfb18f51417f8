package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 50, c.Server.MaxResults)
	assert.Equal(t, 120, c.Server.MaxQueryLen)
	assert.Equal(t, 1024, c.Index.CacheSize)
	assert.Equal(t, "kyiv-center", c.Data.DefaultDataset)
	assert.Equal(t, 30*time.Second, c.Data.HTTPTimeout.Duration)
	assert.True(t, c.CLI.ShowLinks)
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	c, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
	require.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		content     string
		check       func(t *testing.T, c *Config)
		description string
	}{
		{
			content: "[server]\nmax_results = 10\n\n[data]\nhttp_timeout = \"5s\"\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 10, c.Server.MaxResults)
				assert.Equal(t, 120, c.Server.MaxQueryLen, "missing keys keep defaults")
				assert.Equal(t, 5*time.Second, c.Data.HTTPTimeout.Duration)
			},
			description: "Partial file",
		},
		{
			content: "[server]\nmax_results = \"many\"\nmax_query_len = 64\n\n[cli]\nshow_links = false\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 50, c.Server.MaxResults, "wrong type falls back")
				assert.Equal(t, 64, c.Server.MaxQueryLen)
				assert.False(t, c.CLI.ShowLinks)
			},
			description: "Wrong types are recovered per key",
		},
		{
			content: "[data]\nhttp_timeout = \"soon\"\ndefault_dataset = \"lviv\"\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 30*time.Second, c.Data.HTTPTimeout.Duration)
				assert.Equal(t, "lviv", c.Data.DefaultDataset)
			},
			description: "Bad duration",
		},
		{
			content: "this is [not toml",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultConfig(), c)
			},
			description: "Garbage",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))

			c, err := LoadConfig(path)
			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLoadConfigWithPriority(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(custom, []byte("[index]\ncache_size = 8\n"), 0644))
	def := filepath.Join(dir, "default", "config.toml")

	c, used := LoadConfigWithPriority(custom, def)
	assert.Equal(t, custom, used)
	assert.Equal(t, 8, c.Index.CacheSize)

	c, used = LoadConfigWithPriority(filepath.Join(dir, "missing.toml"), def)
	assert.Equal(t, def, used)
	assert.Equal(t, DefaultConfig().Index, c.Index)
	assert.FileExists(t, def)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDataDir, "/srv/poi")
	t.Setenv(EnvDataset, "lviv")
	t.Setenv(EnvLat, "49.84")
	t.Setenv(EnvLon, "east")

	c := ApplyEnv(DefaultConfig())
	assert.Equal(t, "/srv/poi", c.Data.Dir)
	assert.Equal(t, "lviv", c.Data.DefaultDataset)
	assert.Equal(t, 49.84, c.Server.DefaultLat)
	assert.Equal(t, 49.84, c.CLI.DefaultLat)
	assert.Equal(t, DefaultConfig().Server.DefaultLon, c.Server.DefaultLon)
}
