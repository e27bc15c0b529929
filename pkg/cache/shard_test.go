package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardForIsStable(t *testing.T) {
	store := newShardedStore(8)
	for i := range 100 {
		key := fmt.Sprintf("key-%d", i)
		assert.Same(t, store.shardFor(key), store.shardFor(key), "A key must always map to the same shard")
	}
}

// TestShardDistribution verifies that keys spread across shards instead of piling up on one.
func TestShardDistribution(t *testing.T) {
	shardCount := 8
	store := newShardedStore(shardCount)
	keyCount := 10_000
	for i := range keyCount {
		store.replace(fmt.Sprintf("key-%d", i), entry{value: []byte("v")})
	}
	require.Equal(t, keyCount, store.len())
	for i, shard := range store.shards {
		assert.Greater(t, len(shard.entries), keyCount/(2*shardCount),
			"Shard %d holds far fewer keys than a uniform distribution would give it", i)
	}
}

func TestDeleteIfNotAfter(t *testing.T) {
	store := newShardedStore(4)
	stamp := time.Now()

	t.Run("removes on older stamp", func(t *testing.T) {
		store.replace("old", entry{value: []byte("v"), expiresAt: stamp})
		removed, ok := store.deleteIfNotAfter("old", stamp.Add(time.Second))
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), removed.value)
	})
	t.Run("removes on equal stamp", func(t *testing.T) {
		store.replace("equal", entry{value: []byte("v"), expiresAt: stamp})
		_, ok := store.deleteIfNotAfter("equal", stamp)
		assert.True(t, ok)
	})
	t.Run("keeps fresher entry", func(t *testing.T) {
		store.replace("fresh", entry{value: []byte("v"), expiresAt: stamp.Add(time.Minute)})
		_, ok := store.deleteIfNotAfter("fresh", stamp)
		assert.False(t, ok)
		_, found := store.shardFor("fresh").entries["fresh"]
		assert.True(t, found)
	})
	t.Run("no-ops on missing key", func(t *testing.T) {
		_, ok := store.deleteIfNotAfter("missing", stamp)
		assert.False(t, ok)
	})
}

// TestConcurrentAccess hammers the cache from many goroutines; run with -race.
func TestConcurrentAccess(t *testing.T) {
	simpleCache, _ := newTestCache(time.Minute, WithShardCount(8))

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1_000 {
				key := fmt.Sprintf("key-%d", i%100)
				simpleCache.Put(key, []byte(fmt.Sprintf("worker-%d-%d", worker, i)))
				_, _ = simpleCache.GetString(key)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, simpleCache.Len())
}
