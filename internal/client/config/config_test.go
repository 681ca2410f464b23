package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, StoreSQLite, c.StoreKind)
	assert.Equal(t, 20*time.Second, c.FetchTimeout)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "memory", mutate: func(c *Config) { c.StoreKind = StoreMemory }, ok: true},
		{name: "unknown store", mutate: func(c *Config) { c.StoreKind = "redis" }},
		{name: "s3 without bucket", mutate: func(c *Config) { c.StoreKind = StoreS3 }},
		{name: "s3 with bucket", mutate: func(c *Config) { c.StoreKind = StoreS3; c.S3Bucket = "b" }, ok: true},
		{name: "zero interval", mutate: func(c *Config) { c.OnlineCheckInterval = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestParseEnv(t *testing.T) {
	env := map[string]string{
		EnvAddress:      "api.example:443",
		EnvStore:        StoreMemory,
		EnvFetchTimeout: "5s",
		EnvS3Bucket:     "",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := defaults()
	require.NoError(t, parseEnv(c, lookup))

	want := defaults()
	want.ServerEndpointAddr = "api.example:443"
	want.StoreKind = StoreMemory
	want.FetchTimeout = 5 * time.Second
	assert.Empty(t, cmp.Diff(want, c))

	env[EnvOnlineCheckInterval] = "soon"
	assert.ErrorContains(t, parseEnv(defaults(), lookup), EnvOnlineCheckInterval)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "address and interval", args: []string{"-a", "127.0.0.1:9090", "-i", "10"},
			expected: func() *Config {
				c := defaults()
				c.ServerEndpointAddr = "127.0.0.1:9090"
				c.OnlineCheckInterval = 10 * time.Second
				return c
			}()},
		{name: "store and timeout", args: []string{"-s", "s3", "-s3-bucket", "dk", "-f", "2s", "-t", "tok", "status"},
			expected: func() *Config {
				c := defaults()
				c.StoreKind = StoreS3
				c.S3Bucket = "dk"
				c.FetchTimeout = 2 * time.Second
				c.AccessToken = "tok"
				return c
			}()},
		{name: "incorrect check interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaults()
			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"server_endpoint_addr":  "www.example:9000",
		"online_check_interval": "10s",
		"store":                 "memory",
	})

	t.Run("loads from flags", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "www.example:9000", cfg.ServerEndpointAddr)
		assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
		assert.Equal(t, StoreMemory, cfg.StoreKind)
		assert.Equal(t, 20*time.Second, cfg.FetchTimeout, "absent fields keep their value")
	})

	t.Run("flags override json", func(t *testing.T) {
		args := []string{"-c", path, "-a", "cli:1"}
		cfg := defaults()
		parseJson(cfg, args)
		parseFlags(cfg, args)
		assert.Equal(t, "cli:1", cfg.ServerEndpointAddr)
		assert.Equal(t, StoreMemory, cfg.StoreKind)
	})

	t.Run("no flags → no changes", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, nil)
		assert.Empty(t, cmp.Diff(defaults(), cfg))
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		require.Panics(t, func() { parseJson(defaults(), []string{"-config", bad}) })
	})
}
