package archive

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/rageplaylists/scraper"
)

// ExtractTracks reads the tracks of a playlist page in page order. Rows
// without both an artist and a song are skipped.
func ExtractTracks(r io.Reader, config scraper.PlaylistConfig) ([]Track, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	config = config.WithDefaults()
	tracks := []Track{}

	doc.Find(config.TrackSelector).Each(func(i int, row *goquery.Selection) {
		artist := normalizeSpace(row.Find(config.ArtistSelector).First().Text())
		song := normalizeSpace(row.Find(config.SongSelector).First().Text())
		if artist == "" || song == "" {
			return
		}

		track := Track{Artist: artist, Song: song}
		if config.LabelSelector != "" {
			track.Label = normalizeSpace(row.Find(config.LabelSelector).First().Text())
		}
		tracks = append(tracks, track)
	})

	return tracks, nil
}
