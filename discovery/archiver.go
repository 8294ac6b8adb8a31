package discovery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/index"
	"github.com/pevans/rageplaylists/scraper"
	"github.com/pevans/rageplaylists/videos"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageFetcher returns the raw HTML of a playlist page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// RecordStore persists playlist records. *playlists.Store satisfies it.
type RecordStore interface {
	Add(p archive.Playlist) (string, error)
}

// ArchiverConfig configures an Archiver.
type ArchiverConfig struct {
	IndexPath string
	Playlist  scraper.PlaylistConfig
	// DryRun reports what would be archived without fetching playlist
	// pages or writing anything.
	DryRun bool
	// VideoConcurrency bounds concurrent video lookups per playlist.
	VideoConcurrency int
}

// RunResult summarises one archiver run.
type RunResult struct {
	RunID      uuid.UUID       `json:"run_id"`
	Discovered []archive.Entry `json:"discovered"`
	Written    []string        `json:"written"`
}

// Archiver brings the local archive up to date: it discovers missing
// entries, stores a record for each and appends them to the index.
type Archiver struct {
	reconciler *Reconciler
	pages      PageFetcher
	store      RecordStore
	videos     videos.Lookup
	config     ArchiverConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewArchiver creates an Archiver. lookup and logger may be nil; without a
// lookup tracks are stored without videos.
func NewArchiver(reconciler *Reconciler, pages PageFetcher, store RecordStore, lookup videos.Lookup, config ArchiverConfig, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.VideoConcurrency <= 0 {
		config.VideoConcurrency = 4
	}
	config.Playlist = config.Playlist.WithDefaults()

	return &Archiver{
		reconciler: reconciler,
		pages:      pages,
		store:      store,
		videos:     lookup,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one archiving pass. The index is saved after every stored
// record, so an error part way through keeps the work already done. The
// returned result is non-nil whenever discovery itself succeeded.
func (a *Archiver) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New()
	logger := a.logger.With(zap.String("run_id", runID.String()))

	idx, err := index.Load(a.config.IndexPath)
	if err != nil {
		return nil, err
	}

	missing, err := a.reconciler.DiscoverMissing(ctx, idx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{RunID: runID, Discovered: missing, Written: []string{}}
	logger.Info("discovery finished", zap.Int("missing", len(missing)), zap.Bool("dry_run", a.config.DryRun))

	if a.config.DryRun {
		return result, nil
	}

	for _, entry := range missing {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		playlist, err := a.buildPlaylist(ctx, logger, entry)
		if err != nil {
			return result, fmt.Errorf("failed to archive %s: %w", entry.URL, err)
		}

		path, err := a.store.Add(playlist)
		if err != nil {
			return result, err
		}
		result.Written = append(result.Written, path)

		idx.Append(entry)
		if err := idx.Save(a.config.IndexPath); err != nil {
			return result, fmt.Errorf("failed to save index: %w", err)
		}

		logger.Info("archived playlist",
			zap.String("url", entry.URL),
			zap.String("date", entry.Date.String()),
			zap.Int("tracks", len(playlist.Tracks)),
			zap.String("path", path))
	}

	return result, nil
}

func (a *Archiver) buildPlaylist(ctx context.Context, logger *zap.Logger, entry archive.Entry) (archive.Playlist, error) {
	page, err := a.pages.FetchPage(ctx, entry.URL)
	if err != nil {
		return archive.Playlist{}, err
	}

	tracks, err := archive.ExtractTracks(bytes.NewReader(page), a.config.Playlist)
	if err != nil {
		return archive.Playlist{}, err
	}

	a.attachVideos(ctx, logger, tracks)

	return archive.Playlist{
		Entry:     entry,
		Tracks:    tracks,
		ScrapedAt: a.now().UTC(),
	}, nil
}

// attachVideos looks up videos for each track. Lookup failures leave the
// track without videos.
func (a *Archiver) attachVideos(ctx context.Context, logger *zap.Logger, tracks []archive.Track) {
	if a.videos == nil || len(tracks) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(a.config.VideoConcurrency)

	for i := range tracks {
		g.Go(func() error {
			found, err := a.videos.Lookup(ctx, tracks[i].Artist, tracks[i].Song)
			if err != nil {
				logger.Warn("video lookup failed",
					zap.String("artist", tracks[i].Artist),
					zap.String("song", tracks[i].Song),
					zap.Error(err))
				return nil
			}
			tracks[i].Videos = found
			return nil
		})
	}

	// Lookups never fail the group; errors are logged per track.
	g.Wait()
}
