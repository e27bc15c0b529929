// This module implements an in-process key/value cache where every key lives for one fixed
// duration after its most recent write.
//
// Expiry is active-only: each put queues an expiry notification, and a single background
// cleaner drains the queue, waits out each notification's remaining lifetime, and asks the
// store for a conditional delete. Reads never check expiry themselves, so an entry stays
// visible until the cleaner takes it out, which can lag its nominal expiry by up to one
// full TTL. A notification only deletes the key when the entry's current expiry stamp is
// not newer than the one the notification carries; a key refreshed after the notification
// was queued keeps a newer stamp, and the stale notification degrades to a no-op.

package cache

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/jlowry/simple-mem-cache/pkg/utils"
)

var (
	shardCountFlag = flag.Int("cache_shards", 16,
		"Number of store shards. More shards reduce lock contention between unrelated keys.")
	queueCapacityFlag = flag.Int("cache_expiry_queue_capacity", 1<<16,
		"Capacity of the expiry notification queue. When the queue is full a put still succeeds "+
			"but its notification is dropped, and the key relies on a later put to expire.")
)

// expiryNotice asks the cleaner to remove a key once the carried stamp has passed.
// A key overwritten before its earlier notice was consumed simply has several notices in
// flight; the stale ones fail the freshness check in removeIfExpired.
type expiryNotice struct {
	key       string
	expiresAt time.Time
}

// SimpleCache is a TTL key/value cache backed by a sharded concurrent store and cleaned by
// a single background goroutine. Construct one with New and hand the same instance to every
// collaborator; the ports and the cleaner all share it. Get and Put are safe to call from
// any number of goroutines.
type SimpleCache struct {
	keyLiveDuration time.Duration
	store           *shardedStore
	notices         chan expiryNotice
	metrics         *Metrics
	clock           Clock

	// Knobs resolved at construction time, flag defaults overridable through Options.
	shardCount    int
	queueCapacity int
}

// New returns a SimpleCache whose keys live for keyLiveDuration after their most recent put.
func New(keyLiveDuration time.Duration, metrics *Metrics, opts ...Option) *SimpleCache {
	if metrics == nil {
		utils.RaiseInvariant("cache", "nil_metrics",
			"A nil metrics container has been given to the cache.")
		metrics = NewMetrics() // Unregistered, but keeps every operation safe.
	}
	simpleCache := &SimpleCache{
		keyLiveDuration: keyLiveDuration,
		metrics:         metrics,
		clock:           systemClock{},
		shardCount:      *shardCountFlag,
		queueCapacity:   *queueCapacityFlag,
	}
	for _, opt := range opts {
		opt(simpleCache)
	}
	simpleCache.store = newShardedStore(simpleCache.shardCount)
	simpleCache.notices = make(chan expiryNotice, simpleCache.queueCapacity)
	return simpleCache
}

// Get applies `as` to the value stored under key while holding the read lock of the key's
// shard and returns the mapped result. The mapper indirection lets callers shape the value
// without the cache handing out its internal byte slice; `as` must not retain its argument.
// A miss returns the zero value and false. Get never checks expiry: an entry is returned
// until the cleaner actually removes it.
func Get[V any](c *SimpleCache, key string, as func(value []byte) V) (V, bool /*found*/) {
	var mapped V
	if found := c.store.view(key, func(e entry) { mapped = as(e.value) }); !found {
		slog.Debug("Cache miss.", "key", key)
		c.metrics.Queries.WithLabelValues(missLabel).Inc()
		return *new(V), false
	}
	slog.Debug("Cache hit.", "key", key)
	c.metrics.Queries.WithLabelValues(hitLabel).Inc()
	return mapped, true
}

// GetString is a convenience wrapper around Get that copies the value out as a string.
func (c *SimpleCache) GetString(key string) (string, bool /*found*/) {
	return Get(c, key, func(value []byte) string { return string(value) })
}

// Put stores value under key and restarts the key's TTL window from now, unconditionally
// replacing any previous entry. The cache takes ownership of the value slice; the caller
// must not modify it afterwards.
func (c *SimpleCache) Put(key string, value []byte) {
	expiresAt := c.clock.Now().Add(c.keyLiveDuration)
	if previous, existed := c.store.replace(key, entry{value: value, expiresAt: expiresAt}); existed {
		c.metrics.Size.Sub(float64(len(previous.value)))
	}
	c.metrics.Size.Add(float64(len(value)))
	c.metrics.Items.Set(float64(c.store.len()))
	slog.Debug("Added key to cache.", "key", key, "expiresAt", expiresAt)

	select {
	case c.notices <- expiryNotice{key: key, expiresAt: expiresAt}:
	default:
		// Delivery is best effort. Until a later put for this key queues a fresh notice,
		// the key stays cached past its TTL.
		c.metrics.DroppedNotices.Inc()
		slog.Error("Could not add key to expiry queue, queue is full.", "key", key)
	}
}

// Len returns the number of keys currently held.
func (c *SimpleCache) Len() int {
	return c.store.len()
}

// removeIfExpired deletes key iff its current expiry stamp is not after notifiedExpiry.
// A strictly newer stamp means the key was refreshed after the notice was queued, and the
// notice must not take the refreshed value with it. Absent keys are a no-op.
func (c *SimpleCache) removeIfExpired(key string, notifiedExpiry time.Time) {
	removed, ok := c.store.deleteIfNotAfter(key, notifiedExpiry)
	if !ok {
		return
	}
	c.metrics.Size.Sub(float64(len(removed.value)))
	c.metrics.Items.Set(float64(c.store.len()))
	slog.Debug("Removed expired key from cache.", "key", key)
}

// clean processes the notices that are already queued without waiting for new ones.
// Notices are handled in arrival order: for each one it sleeps until the carried stamp has
// passed and then asks the store for a conditional delete. Returns once the queue is
// drained, or early with ctx.Err() when ctx is cancelled mid-wait.
func (c *SimpleCache) clean(ctx context.Context) error {
	for {
		select {
		case notice := <-c.notices:
			if remaining := notice.expiresAt.Sub(c.clock.Now()); remaining > 0 {
				timer := time.NewTimer(remaining)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
			c.removeIfExpired(notice.key, notice.expiresAt)
		default:
			return nil
		}
	}
}

// Cleaner runs the expiry loop until ctx is cancelled: drain the queued notices, sleep one
// TTL, repeat. Run exactly one Cleaner goroutine per cache.
func (c *SimpleCache) Cleaner(ctx context.Context) error {
	slog.Info("Starting cache cleaner.", "keyLiveDuration", c.keyLiveDuration)
	for {
		if err := c.clean(ctx); err != nil {
			return err
		}
		timer := time.NewTimer(c.keyLiveDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
