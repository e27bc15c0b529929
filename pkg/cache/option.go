package cache

// Option tweaks SimpleCache construction. The flag-backed defaults suit production use;
// tests mostly override the clock or shrink the queue.
type Option func(*SimpleCache)

// WithShardCount overrides the number of store shards.
func WithShardCount(n int) Option {
	return func(c *SimpleCache) { c.shardCount = n }
}

// WithQueueCapacity overrides the capacity of the expiry notification queue.
func WithQueueCapacity(n int) Option {
	return func(c *SimpleCache) { c.queueCapacity = n }
}

// WithClock swaps the time source used to stamp entry expiries.
func WithClock(clk Clock) Option {
	return func(c *SimpleCache) { c.clock = clk }
}
