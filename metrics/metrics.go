// Package metrics exposes Prometheus counters for archive runs.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rage"

// Metrics holds the archiver's counters.
type Metrics struct {
	MonthsScanned     prometheus.Counter
	EntriesDiscovered prometheus.Counter
	ItemsSkipped      prometheus.Counter
	RecordsWritten    prometheus.Counter
	WriteCollisions   prometheus.Counter
	VideoCacheHits    prometheus.Counter
	VideoCacheMisses  prometheus.Counter
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MonthsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "months_scanned_total",
			Help:      "Month listing pages fetched and extracted",
		}),
		EntriesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_discovered_total",
			Help:      "Archive entries not present in the index",
		}),
		ItemsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_items_skipped_total",
			Help:      "Listing items dropped because no date or link could be read",
		}),
		RecordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Playlist records written to the data directory",
		}),
		WriteCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_collisions_total",
			Help:      "Writes that needed a numeric suffix to avoid an existing file",
		}),
		VideoCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_cache_hits_total",
			Help:      "Video lookups answered from the cache",
		}),
		VideoCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_cache_misses_total",
			Help:      "Video lookups that went to the search provider",
		}),
	}
}

// MonthScanned counts one fetched and extracted month listing.
func (m *Metrics) MonthScanned() {
	if m != nil {
		m.MonthsScanned.Inc()
	}
}

// Discovered adds n entries found missing from the index.
func (m *Metrics) Discovered(n int) {
	if m != nil {
		m.EntriesDiscovered.Add(float64(n))
	}
}

// Skipped adds n listing items dropped during extraction.
func (m *Metrics) Skipped(n int) {
	if m != nil {
		m.ItemsSkipped.Add(float64(n))
	}
}

// RecordWritten counts a stored record; collided marks one that needed a
// numeric suffix.
func (m *Metrics) RecordWritten(collided bool) {
	if m == nil {
		return
	}
	m.RecordsWritten.Inc()
	if collided {
		m.WriteCollisions.Inc()
	}
}

// VideoCacheHit counts a lookup answered from the cache.
func (m *Metrics) VideoCacheHit() {
	if m != nil {
		m.VideoCacheHits.Inc()
	}
}

// VideoCacheMiss counts a lookup sent to the search provider.
func (m *Metrics) VideoCacheMiss() {
	if m != nil {
		m.VideoCacheMisses.Inc()
	}
}
