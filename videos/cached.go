package videos

import (
	"context"
	"fmt"

	"github.com/pevans/rageplaylists/metrics"
	"go.uber.org/zap"
)

// CachedLookup answers lookups from a Cache, falling back to a Searcher.
// Only non-empty results are cached, so empty answers are always re-queried.
type CachedLookup struct {
	searcher Searcher
	cache    *Cache
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCachedLookup creates a lookup. cache may be nil to disable caching;
// m and logger may be nil.
func NewCachedLookup(searcher Searcher, cache *Cache, m *metrics.Metrics, logger *zap.Logger) *CachedLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookup{searcher: searcher, cache: cache, metrics: m, logger: logger}
}

// Lookup implements Lookup.
func (l *CachedLookup) Lookup(ctx context.Context, artist, song string) ([]Video, error) {
	query := Query(artist, song)

	if l.cache != nil {
		cached, ok, err := l.cache.Get(query)
		if err != nil {
			// A broken cache entry shouldn't stop the search
			l.logger.Warn("video cache read failed", zap.String("query", query), zap.Error(err))
		} else if ok {
			l.metrics.VideoCacheHit()
			return cached, nil
		}
		l.metrics.VideoCacheMiss()
	}

	found, err := l.searcher.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	if l.cache != nil && len(found) > 0 {
		if err := l.cache.Set(query, found); err != nil {
			l.logger.Warn("video cache write failed", zap.String("query", query), zap.Error(err))
		}
	}

	return found, nil
}
