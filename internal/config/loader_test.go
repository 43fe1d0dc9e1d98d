package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the promptpack
// config directory inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	// Keep a stray .env in the working directory out of the way.
	t.Chdir(t.TempDir())
	dir := filepath.Join(home, ".config", "promptpack")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.Path)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "regex", cfg.Secrets.Engine)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 8088
  shutdown_timeout: 3s
  rate_limit: 5
storage:
  driver: sqlite
  path: ~/db/promptpack.db
  cache_size: 16
prompt:
  header_paths: true
  scrub_secrets: true
secrets:
  engine: gitleaks
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	home := filepath.Dir(filepath.Dir(dir))
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(home, "db", "promptpack.db"), cfg.Storage.Path)
	assert.Equal(t, 16, cfg.Storage.CacheSize)
	assert.True(t, cfg.Prompt.HeaderPaths)
	assert.True(t, cfg.Prompt.ScrubSecrets)
	assert.Equal(t, "gitleaks", cfg.Secrets.Engine)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset keys keep defaults")
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0600)

	t.Setenv("PROMPTPACK_SERVER_HTTP_PORT", "7070")
	t.Setenv("PROMPTPACK_STORAGE_DRIVER", "memory")
	t.Setenv("PROMPTPACK_LOGGING_FORMAT", "console")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "", cfg.Storage.Path)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadWithFile_DotEnv(t *testing.T) {
	setupTestHome(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wd, ".env"), []byte("PROMPTPACK_SERVER_HTTP_PORT=6060\n"), 0600))
	// godotenv sets the variable process-wide; register cleanup through t.Setenv.
	t.Setenv("PROMPTPACK_SERVER_HTTP_PORT", "")
	require.NoError(t, os.Unsetenv("PROMPTPACK_SERVER_HTTP_PORT"))

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadWithFile_Rejections(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission checks are skipped on windows")
	}

	t.Run("world readable file", func(t *testing.T) {
		dir := setupTestHome(t)
		path := writeConfig(t, dir, "server:\n  http_port: 8088\n", 0644)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insecure config file permissions")
	})

	t.Run("outside allowed directories", func(t *testing.T) {
		setupTestHome(t)
		other := filepath.Join(t.TempDir(), "config.yaml")
		_, err := LoadWithFile(other)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config path validation failed")
	})

	t.Run("sibling directory with shared prefix", func(t *testing.T) {
		dir := setupTestHome(t)
		_, err := LoadWithFile(dir + "-evil/config.yaml")
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		dir := setupTestHome(t)
		big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
		path := writeConfig(t, dir, big, 0600)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("invalid values", func(t *testing.T) {
		dir := setupTestHome(t)
		path := writeConfig(t, dir, "storage:\n  driver: etcd\n", 0600)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage driver")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "zero timeout", mutate: func(c *Config) { c.Server.ShutdownTimeout = 0 }, wantErr: "shutdown timeout"},
		{name: "negative rate", mutate: func(c *Config) { c.Server.RateLimit = -1 }, wantErr: "rate limit"},
		{name: "postgres needs dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "dsn required"},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Storage.Driver = "postgres"
			c.Storage.DSN = "postgres://u:p@localhost/db"
		}},
		{name: "negative cache", mutate: func(c *Config) { c.Storage.CacheSize = -1 }, wantErr: "cache size"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging format"},
		{name: "bad engine", mutate: func(c *Config) { c.Secrets.Engine = "magic" }, wantErr: "secrets engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("postgres://user:hunter2@db/promptpack")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")

	data, err := json.Marshal(struct{ DSN Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	assert.True(t, s.IsSet())
	assert.Equal(t, "postgres://user:hunter2@db/promptpack", s.Value())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
