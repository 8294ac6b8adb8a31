// Package videos finds music videos for playlist tracks.
package videos

import (
	"context"
	"fmt"
)

// Video is a candidate music video for a track.
type Video struct {
	Source string `json:"source"`
	Host   string `json:"host"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// Lookup maps an (artist, song) pair to zero or more candidate videos.
type Lookup interface {
	Lookup(ctx context.Context, primaryName, secondaryName string) ([]Video, error)
}

// Searcher runs a free-text video search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Video, error)
}

// Query composes the search query for a track.
func Query(artist, song string) string {
	return fmt.Sprintf("%s - %s music video", artist, song)
}
