// This module implements the sharded backing store. Since a single map under one mutex
// would serialize every operation, the key space is split across a fixed set of shards,
// each owning a plain map guarded by its own RWMutex. Goroutines touching unrelated keys
// lock different shards and never block each other; a key's shard is fixed by hashing it
// with xxhash and taking the hash modulo the shard count.

package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jlowry/simple-mem-cache/pkg/utils"
)

// entry is a stored value together with its expiry stamp. A put replaces the whole entry;
// nothing ever mutates one in place.
type entry struct {
	value     []byte
	expiresAt time.Time
}

type shard struct {
	mux     sync.RWMutex
	entries map[string]entry
}

// shardedStore maps keys to entries across a fixed set of shards.
type shardedStore struct {
	shards []*shard
}

func newShardedStore(shardCount int) *shardedStore {
	// Ensure there is at least one shard.
	if shardCount <= 0 {
		utils.RaiseInvariant("store", "non_positive_shard_count",
			"Invalid shard count has been given to the sharded store.", "shardCount", shardCount)
		shardCount = 1
	}
	store := &shardedStore{shards: make([]*shard, shardCount)}
	for i := range shardCount {
		store.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return store
}

// shardFor determines which shard a given key belongs to.
func (s *shardedStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// view runs fn on the entry stored under key while holding the shard's read lock.
// It returns false without calling fn when the key is absent.
func (s *shardedStore) view(key string, fn func(entry)) bool {
	shard := s.shardFor(key)
	shard.mux.RLock()
	defer shard.mux.RUnlock()

	e, found := shard.entries[key]
	if !found {
		return false
	}
	fn(e)
	return true
}

// replace swaps in a new entry for key and returns the previous one, if any.
func (s *shardedStore) replace(key string, e entry) (entry, bool /*existed*/) {
	shard := s.shardFor(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	previous, existed := shard.entries[key]
	shard.entries[key] = e
	return previous, existed
}

// deleteIfNotAfter removes key iff its current expiry stamp is not after the given stamp,
// and returns the removed entry. The check and the delete happen under one shard lock, so
// a concurrent put either lands before the check (and keeps the key via a newer stamp) or
// after the delete (and reinstates the key).
func (s *shardedStore) deleteIfNotAfter(key string, stamp time.Time) (entry, bool /*removed*/) {
	shard := s.shardFor(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	e, found := shard.entries[key]
	if !found || e.expiresAt.After(stamp) {
		return entry{}, false
	}
	delete(shard.entries, key)
	return e, true
}

// len counts the keys across all shards.
func (s *shardedStore) len() int {
	count := 0
	for _, shard := range s.shards {
		shard.mux.RLock()
		count += len(shard.entries)
		shard.mux.RUnlock()
	}
	return count
}
