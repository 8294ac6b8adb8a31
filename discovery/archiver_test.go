package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/index"
	"github.com/pevans/rageplaylists/playlists"
	"github.com/pevans/rageplaylists/scraper"
	"github.com/pevans/rageplaylists/videos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackPage = `
<html><body><ol class="playlist">
  <li><span class="artist">Kylie Minogue</span><span class="song">Spinning Around</span><span class="label">Mushroom</span></li>
  <li><span class="artist">Broken</span><span class="song">Lookup</span></li>
</ol></body></html>`

type fakePages struct {
	fail  map[string]error
	mu    sync.Mutex
	calls []string
}

func (f *fakePages) FetchPage(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	return []byte(trackPage), nil
}

type stubLookup struct{}

func (stubLookup) Lookup(ctx context.Context, artist, song string) ([]videos.Video, error) {
	if artist == "Broken" {
		return nil, errors.New("quota exceeded")
	}
	return []videos.Video{{
		Source: "youtube-data-api",
		Host:   "youtube",
		URL:    "https://www.youtube.com/watch?v=" + song,
	}}, nil
}

type archiverFixture struct {
	archiver  *Archiver
	pages     *fakePages
	store     *playlists.Store
	indexPath string
}

func setupTestArchiver(t *testing.T, dryRun bool, lookup videos.Lookup) *archiverFixture {
	t.Helper()

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.json")

	idx := index.New(indexPath)
	idx.Append(knownEntry())
	require.NoError(t, idx.Save(indexPath))

	pages := &fakePages{}
	store := playlists.NewStore(filepath.Join(dir, "data"), nil)
	reconciler := setupTestReconciler(t, januaryPages(), 10, nil)

	archiver := NewArchiver(reconciler, pages, store, lookup, ArchiverConfig{
		IndexPath: indexPath,
		Playlist:  scraper.DefaultPlaylistConfig(),
		DryRun:    dryRun,
	}, nil)
	archiver.now = func() time.Time {
		return time.Date(2020, time.March, 1, 12, 0, 0, 0, time.UTC)
	}

	return &archiverFixture{archiver: archiver, pages: pages, store: store, indexPath: indexPath}
}

func TestArchiver_Run(t *testing.T) {
	f := setupTestArchiver(t, false, stubLookup{})

	result, err := f.archiver.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID.String())
	assert.Len(t, result.Discovered, 3)

	root := f.store.Root()
	assert.Equal(t, []string{
		filepath.Join(root, "2020", "01", "04.json"),
		filepath.Join(root, "2020", "01", "04_2.json"),
		filepath.Join(root, "2020", "02", "07.json"),
	}, result.Written)

	idx, err := index.Load(f.indexPath)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.True(t, idx.Contains(playlistURL("201")))

	day, err := f.store.ListDay(dates.Date{Year: 2020, Month: time.January, Day: 4})
	require.NoError(t, err)
	require.Len(t, day.Playlists, 2)

	record := day.Playlists[0]
	require.Len(t, record.Tracks, 2)
	assert.Equal(t, "Kylie Minogue", record.Tracks[0].Artist)
	assert.Equal(t, "Mushroom", record.Tracks[0].Label)
	require.Len(t, record.Tracks[0].Videos, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=Spinning Around", record.Tracks[0].Videos[0].URL)
	assert.Empty(t, record.Tracks[1].Videos, "a failed lookup leaves the track without videos")
	assert.Equal(t, time.Date(2020, time.March, 1, 12, 0, 0, 0, time.UTC), record.ScrapedAt)
}

func TestArchiver_SecondRunFindsNothing(t *testing.T) {
	f := setupTestArchiver(t, false, nil)

	_, err := f.archiver.Run(context.Background())
	require.NoError(t, err)

	result, err := f.archiver.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Discovered)
	assert.Empty(t, result.Written)
}

func TestArchiver_DryRun(t *testing.T) {
	f := setupTestArchiver(t, true, nil)

	result, err := f.archiver.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Discovered, 3)
	assert.Empty(t, result.Written)
	assert.Empty(t, f.pages.calls)

	_, err = os.Stat(f.store.Root())
	assert.True(t, os.IsNotExist(err), "dry run must not create the data directory")

	idx, err := index.Load(f.indexPath)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestArchiver_PartialProgressIsKept(t *testing.T) {
	f := setupTestArchiver(t, false, nil)
	f.pages.fail = map[string]error{playlistURL("103"): fmt.Errorf("connection reset")}

	result, err := f.archiver.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), playlistURL("103"))
	require.NotNil(t, result)
	assert.Len(t, result.Written, 1)

	idx, err := index.Load(f.indexPath)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.Contains(playlistURL("102")))
	assert.False(t, idx.Contains(playlistURL("103")))

	// The next run picks up where the failed one stopped.
	f.pages.fail = nil
	result, err = f.archiver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{playlistURL("103"), playlistURL("201")}, urlsOf(result.Discovered))
}

func TestArchiver_MissingIndex(t *testing.T) {
	f := setupTestArchiver(t, false, nil)
	require.NoError(t, os.Remove(f.indexPath))

	_, err := f.archiver.Run(context.Background())
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestArchiver_StoreFailure(t *testing.T) {
	f := setupTestArchiver(t, false, nil)
	failing := &failingStore{err: errors.New("disk full")}
	f.archiver.store = failing

	result, err := f.archiver.Run(context.Background())
	assert.ErrorIs(t, err, failing.err)
	assert.Empty(t, result.Written)

	idx, err := index.Load(f.indexPath)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len(), "nothing is indexed when the record was not stored")
}

type failingStore struct {
	err error
}

func (s *failingStore) Add(p archive.Playlist) (string, error) {
	return "", s.err
}
