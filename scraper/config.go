package scraper

// ListingConfig defines how to read archive entries from a month listing
// page. Selectors are goquery (CSS) selectors.
type ListingConfig struct {
	// ItemSelector matches one element per archive entry.
	ItemSelector string `json:"item_selector" yaml:"item_selector"`
	// LinkSelector matches the entry's anchor within an item. Empty means
	// the item itself is the anchor.
	LinkSelector string `json:"link_selector,omitempty" yaml:"link_selector"`
	// CaptionSelector matches the caption text within an item. Empty means
	// the link text is the caption.
	CaptionSelector string `json:"caption_selector,omitempty" yaml:"caption_selector"`
	// TimeslotSelector matches an optional timeslot label within an item.
	TimeslotSelector string `json:"timeslot_selector,omitempty" yaml:"timeslot_selector"`
}

// PlaylistConfig defines how to read tracks from a single playlist page.
type PlaylistConfig struct {
	TrackSelector  string `json:"track_selector" yaml:"track_selector"`
	ArtistSelector string `json:"artist_selector" yaml:"artist_selector"`
	SongSelector   string `json:"song_selector" yaml:"song_selector"`
	LabelSelector  string `json:"label_selector,omitempty" yaml:"label_selector"`
}

// DefaultListingConfig returns selectors matching the public rage archive
// listing markup.
func DefaultListingConfig() ListingConfig {
	return ListingConfig{
		ItemSelector:     "ul.archive-list li",
		LinkSelector:     "a",
		TimeslotSelector: ".timeslot",
	}
}

// DefaultPlaylistConfig returns selectors matching the public rage playlist
// page markup.
func DefaultPlaylistConfig() PlaylistConfig {
	return PlaylistConfig{
		TrackSelector:  "ol.playlist li",
		ArtistSelector: ".artist",
		SongSelector:   ".song",
		LabelSelector:  ".label",
	}
}

// WithDefaults fills empty required selectors from DefaultListingConfig.
func (c ListingConfig) WithDefaults() ListingConfig {
	if c.ItemSelector == "" {
		c.ItemSelector = DefaultListingConfig().ItemSelector
	}
	return c
}

// WithDefaults fills empty required selectors from DefaultPlaylistConfig.
func (c PlaylistConfig) WithDefaults() PlaylistConfig {
	d := DefaultPlaylistConfig()
	if c.TrackSelector == "" {
		c.TrackSelector = d.TrackSelector
	}
	if c.ArtistSelector == "" {
		c.ArtistSelector = d.ArtistSelector
	}
	if c.SongSelector == "" {
		c.SongSelector = d.SongSelector
	}
	return c
}
