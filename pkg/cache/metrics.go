// Cache telemetry. The cache only ever writes these metrics as a side effect of its
// operations; it never reads them back, so no cache decision can depend on their values.

package cache

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	hitLabel  = "hit"
	missLabel = "miss"
)

// Metrics holds the prometheus collectors updated by SimpleCache.
type Metrics struct {
	// Queries counts cache lookups, split by the hit_or_miss label.
	Queries *prometheus.CounterVec
	// Items tracks the number of keys currently held.
	Items prometheus.Gauge
	// Size tracks the total size in bytes of stored values (keys and expiry bookkeeping excluded).
	Size prometheus.Gauge
	// DroppedNotices counts expiry notifications discarded because the queue was full.
	// A key whose notice was dropped stays cached past its TTL until a later put for the
	// same key manages to queue a fresh notice.
	DroppedNotices prometheus.Counter
}

// NewMetrics creates unregistered cache collectors. Register must be called before the
// metrics show up on a scrape endpoint.
func NewMetrics() *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_query",
			Help: "A count of cache hits and misses",
		}, []string{"hit_or_miss"}),
		Items: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_items",
			Help: "The number of items in the cache",
		}),
		Size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "The total size in bytes of all values in the cache",
		}),
		DroppedNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_expiry_notices_dropped_total",
			Help: "The number of expiry notifications dropped because the queue was full",
		}),
	}
}

// Register registers all cache collectors with the given registerer.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{m.Queries, m.Items, m.Size, m.DroppedNotices} {
		if err := registerer.Register(collector); err != nil {
			return fmt.Errorf("failed to register cache collector: %w", err)
		}
	}
	slog.Info("Registered cache metrics.")
	return nil
}
