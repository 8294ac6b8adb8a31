package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pevans/rageplaylists/discovery"
	"github.com/pevans/rageplaylists/logging"
	"github.com/pevans/rageplaylists/scraper"
	"github.com/pevans/rageplaylists/videos"
	"gopkg.in/yaml.v3"
)

// ArchiveConfig describes where the archive lives and how its pages are laid
// out.
type ArchiveConfig struct {
	BaseURL   string                 `yaml:"base_url"`
	MaxMonths int                    `yaml:"max_months"`
	Listing   scraper.ListingConfig  `yaml:"listing"`
	Playlist  scraper.PlaylistConfig `yaml:"playlist"`
}

// VideosConfig controls per-track video lookups.
type VideosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	CachePath   string `yaml:"cache_path"`
	MaxResults  int    `yaml:"max_results"`
	Concurrency int    `yaml:"concurrency"`
}

// APIConfig controls the read-only HTTP API.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Config represents the structure of ~/.rage/config.yaml.
type Config struct {
	DataDir   string                `yaml:"data_dir"`
	IndexPath string                `yaml:"index_path"`
	Archive   ArchiveConfig         `yaml:"archive"`
	Fetch     discovery.FetchConfig `yaml:"fetch"`
	Videos    VideosConfig          `yaml:"videos"`
	Log       logging.Config        `yaml:"log"`
	API       APIConfig             `yaml:"api"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:   "data",
		IndexPath: filepath.Join("data", "index.json"),
		Archive: ArchiveConfig{
			BaseURL:   "https://www.abc.net.au",
			MaxMonths: discovery.DefaultMaxMonths,
			Listing:   scraper.DefaultListingConfig(),
			Playlist:  scraper.DefaultPlaylistConfig(),
		},
		Fetch: discovery.DefaultFetchConfig(),
		Videos: VideosConfig{
			BaseURL:     videos.DefaultYouTubeBaseURL,
			CachePath:   filepath.Join("data", "videos.db"),
			MaxResults:  5,
			Concurrency: 4,
		},
		Log: logging.Config{Level: "info"},
		API: APIConfig{Addr: ":8080"},
	}
}

// DefaultPath returns ~/.rage/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".rage", "config.yaml"), nil
}

// Load reads configuration from path, or from ~/.rage/config.yaml when path
// is empty. A missing default file is not an error and yields defaults; a
// missing explicit file is. A .env file in the working directory is loaded
// next, then RAGE_* environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file; keep defaults.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RAGE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RAGE_INDEX_PATH"); v != "" {
		c.IndexPath = v
	}
	if v := os.Getenv("RAGE_YOUTUBE_API_KEY"); v != "" {
		c.Videos.APIKey = v
		c.Videos.Enabled = true
	}
	if v := os.Getenv("RAGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RAGE_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("RAGE_MAX_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RAGE_MAX_MONTHS %q: %w", v, err)
		}
		c.Archive.MaxMonths = n
	}
	return nil
}

// Validate rejects values the archiver cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir is required")
	}
	if strings.TrimSpace(c.IndexPath) == "" {
		problems = append(problems, "index_path is required")
	}
	if c.Archive.MaxMonths < 1 {
		problems = append(problems, "archive.max_months must be at least 1")
	}
	if c.Archive.BaseURL == "" {
		problems = append(problems, "archive.base_url is required")
	}
	if !strings.Contains(c.Fetch.MonthURLTemplate, "{year}") ||
		!strings.Contains(c.Fetch.MonthURLTemplate, "{month}") {
		problems = append(problems, "fetch.month_url_template must contain {year} and {month}")
	}
	if c.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries must not be negative")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		problems = append(problems, "fetch.requests_per_second must not be negative")
	}
	if c.Videos.Enabled && c.Videos.APIKey == "" {
		problems = append(problems, "videos.api_key is required when videos are enabled")
	}
	if c.Videos.Concurrency < 1 {
		problems = append(problems, "videos.concurrency must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
