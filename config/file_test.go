package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnv points HOME at an empty directory, runs the test from another
// empty directory so no stray .env is picked up, and clears RAGE_*.
func setupTestEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	for _, key := range []string{
		"RAGE_DATA_DIR", "RAGE_INDEX_PATH", "RAGE_YOUTUBE_API_KEY",
		"RAGE_LOG_LEVEL", "RAGE_API_ADDR", "RAGE_MAX_MONTHS",
	} {
		t.Setenv(key, "")
	}

	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_NoFile(t *testing.T) {
	setupTestEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	setupTestEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := setupTestEnv(t)

	writeConfig(t, filepath.Join(home, ".rage", "config.yaml"), `data_dir: /srv/rage
index_path: /srv/rage/index.json
archive:
  max_months: 3
  listing:
    item_selector: "div.month li"
fetch:
  timeout: 5s
  requests_per_second: 2.5
log:
  level: debug
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/rage", cfg.DataDir)
	assert.Equal(t, "/srv/rage/index.json", cfg.IndexPath)
	assert.Equal(t, 3, cfg.Archive.MaxMonths)
	assert.Equal(t, "div.month li", cfg.Archive.Listing.ItemSelector)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2.5, cfg.Fetch.RequestsPerSecond)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, Default().Fetch.MonthURLTemplate, cfg.Fetch.MonthURLTemplate)
	assert.Equal(t, Default().Archive.Playlist, cfg.Archive.Playlist)
	assert.Equal(t, ":8080", cfg.API.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	setupTestEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `archive:
  - this is invalid yaml because archive should be an object not a list
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	setupTestEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "data_dir: /from/file\n")

	t.Setenv("RAGE_DATA_DIR", "/from/env")
	t.Setenv("RAGE_MAX_MONTHS", "12")
	t.Setenv("RAGE_YOUTUBE_API_KEY", "secret")
	t.Setenv("RAGE_API_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 12, cfg.Archive.MaxMonths)
	assert.Equal(t, "secret", cfg.Videos.APIKey)
	assert.True(t, cfg.Videos.Enabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr)
}

func TestLoad_DotEnv(t *testing.T) {
	setupTestEnv(t)

	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("RAGE_LOG_LEVEL"))

	// setupTestEnv changed into an empty directory; .env is read from there.
	require.NoError(t, os.WriteFile(".env", []byte("RAGE_LOG_LEVEL=warn\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidMaxMonthsEnv(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("RAGE_MAX_MONTHS", "ten")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAGE_MAX_MONTHS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no data dir", func(c *Config) { c.DataDir = " " }, "data_dir is required"},
		{"no index", func(c *Config) { c.IndexPath = "" }, "index_path is required"},
		{"zero months", func(c *Config) { c.Archive.MaxMonths = 0 }, "max_months"},
		{"template without month", func(c *Config) { c.Fetch.MonthURLTemplate = "https://x/{year}" }, "month_url_template"},
		{"negative retries", func(c *Config) { c.Fetch.MaxRetries = -1 }, "max_retries"},
		{"videos without key", func(c *Config) { c.Videos.Enabled = true }, "api_key"},
		{"zero concurrency", func(c *Config) { c.Videos.Concurrency = 0 }, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
