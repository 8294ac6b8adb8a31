package videos

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache stores search results keyed by query using SQLite.
type Cache struct {
	db *sql.DB
}

// NewCache opens (or creates) the cache database at dbPath.
func NewCache(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cache := &Cache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return cache, nil
}

// initSchema creates the video_cache table if it doesn't exist.
func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS video_cache (
		query TEXT PRIMARY KEY,
		videos TEXT NOT NULL,
		cached_at TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached videos for query. The boolean is false on a miss.
func (c *Cache) Get(query string) ([]Video, bool, error) {
	var raw string
	err := c.db.QueryRow("SELECT videos FROM video_cache WHERE query = ?", query).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	var videos []Video
	if err := json.Unmarshal([]byte(raw), &videos); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached videos: %w", err)
	}

	return videos, true, nil
}

// Set stores videos for query, replacing any previous entry.
func (c *Cache) Set(query string, videos []Video) error {
	data, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("failed to encode videos: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO video_cache (query, videos, cached_at) VALUES (?, ?, ?)",
		query, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}
	return nil
}
