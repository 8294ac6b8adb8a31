// Package archive extracts archive entries from month listing pages and
// tracks from playlist pages.
package archive

import (
	"time"

	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/videos"
)

// Entry is one discovered playlist occurrence. URL is its unique key.
type Entry struct {
	URL      string     `json:"url"`
	Caption  string     `json:"caption"`
	Date     dates.Date `json:"date"`
	Timeslot string     `json:"timeslot,omitempty"`
}

// Playlist is the record persisted for an entry: the entry itself plus the
// tracks read from its page.
type Playlist struct {
	Entry
	Tracks    []Track   `json:"tracks"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Track is one song in a playlist. Videos is filled in by enrichment and may
// be empty.
type Track struct {
	Artist string         `json:"artist"`
	Song   string         `json:"song"`
	Label  string         `json:"label,omitempty"`
	Videos []videos.Video `json:"videos,omitempty"`
}
