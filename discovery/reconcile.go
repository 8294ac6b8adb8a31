package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/index"
	"github.com/pevans/rageplaylists/metrics"
	"go.uber.org/zap"
)

// DefaultMaxMonths bounds a single discovery run.
const DefaultMaxMonths = 10

// MonthFetcher returns the raw listing page for a month. An empty page means
// the archive has nothing for that month.
type MonthFetcher interface {
	FetchMonth(ctx context.Context, year int, month time.Month) ([]byte, error)
}

// PageExtractor turns a listing page into entries. *archive.Extractor
// satisfies it.
type PageExtractor interface {
	Extract(r io.Reader, ref dates.Date) (*archive.ExtractResult, error)
}

// FetchError reports a month that could not be fetched or parsed. No
// partial results are returned alongside it.
type FetchError struct {
	Year  int
	Month time.Month
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to scan archive month %04d-%02d: %v", e.Year, int(e.Month), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReconcilerConfig holds optional settings for a Reconciler.
type ReconcilerConfig struct {
	// MaxMonths caps the months scanned per run. Defaults to
	// DefaultMaxMonths when zero or negative.
	MaxMonths int
}

// Reconciler finds archive entries that the index does not yet contain.
type Reconciler struct {
	fetcher   MonthFetcher
	extractor PageExtractor
	maxMonths int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewReconciler creates a Reconciler. config, m and logger may be nil.
func NewReconciler(fetcher MonthFetcher, extractor PageExtractor, config *ReconcilerConfig, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	maxMonths := DefaultMaxMonths
	if config != nil && config.MaxMonths > 0 {
		maxMonths = config.MaxMonths
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		fetcher:   fetcher,
		extractor: extractor,
		maxMonths: maxMonths,
		metrics:   m,
		logger:    logger,
	}
}

// DiscoverMissing scans month listings forward from the month of the
// index's most recent entry and returns, in discovery order, every entry
// whose URL is neither in the index nor already returned. Scanning stops at
// the first month with no entries or after MaxMonths months. The index is
// not modified.
func (r *Reconciler) DiscoverMissing(ctx context.Context, idx *index.Index) ([]archive.Entry, error) {
	if idx == nil {
		return nil, &index.IndexError{Err: index.ErrEmptyIndex}
	}

	anchor, err := idx.Anchor()
	if err != nil {
		return nil, err
	}

	seen := idx.URLs()
	found := []archive.Entry{}
	current := anchor.FirstOfMonth()

	for i := 0; i < r.maxMonths; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := r.fetcher.FetchMonth(ctx, current.Year, current.Month)
		if err != nil {
			return nil, &FetchError{Year: current.Year, Month: current.Month, Err: err}
		}

		result, err := r.extractor.Extract(bytes.NewReader(page), current)
		if err != nil {
			return nil, &FetchError{Year: current.Year, Month: current.Month, Err: err}
		}
		r.metrics.MonthScanned()

		for _, skipped := range result.Skipped {
			r.logger.Warn("skipped listing item",
				zap.Int("year", current.Year),
				zap.Int("month", int(current.Month)),
				zap.Int("position", skipped.Position),
				zap.String("url", skipped.URL),
				zap.String("caption", skipped.Caption),
				zap.Error(skipped.Err))
		}
		r.metrics.Skipped(len(result.Skipped))

		if len(result.Entries) == 0 {
			r.logger.Debug("month has no entries, stopping",
				zap.Int("year", current.Year),
				zap.Int("month", int(current.Month)))
			break
		}

		added := 0
		for _, entry := range result.Entries {
			if _, ok := seen[entry.URL]; ok {
				continue
			}
			seen[entry.URL] = struct{}{}
			found = append(found, entry)
			added++
		}

		r.logger.Info("scanned archive month",
			zap.Int("year", current.Year),
			zap.Int("month", int(current.Month)),
			zap.Int("entries", len(result.Entries)),
			zap.Int("new", added))

		current = current.NextMonth()
	}

	r.metrics.Discovered(len(found))

	return found, nil
}
