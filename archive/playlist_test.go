package archive

import (
	"strings"
	"testing"

	"github.com/pevans/rageplaylists/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTracks(t *testing.T) {
	page := `
<ol class="playlist">
  <li><span class="artist">Tame Impala</span> <span class="song">Elephant</span> <span class="label">Modular</span></li>
  <li><span class="artist">  Courtney   Barnett </span><span class="song">Avant Gardener</span></li>
  <li><span class="artist">Missing Song</span></li>
</ol>`

	tracks, err := ExtractTracks(strings.NewReader(page), scraper.DefaultPlaylistConfig())
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, Track{Artist: "Tame Impala", Song: "Elephant", Label: "Modular"}, tracks[0])
	assert.Equal(t, "Courtney Barnett", tracks[1].Artist)
	assert.Empty(t, tracks[1].Label)
}

func TestExtractTracks_NoTracks(t *testing.T) {
	tracks, err := ExtractTracks(strings.NewReader("<p>nothing here</p>"), scraper.PlaylistConfig{})
	require.NoError(t, err)
	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)
}
