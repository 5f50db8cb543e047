// Package cache holds values that are expensive to look up for a limited time.
package cache

import (
	"sync"
	"time"
)

// Stats counts cache lookups
type Stats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// TTLCache is a concurrency-safe map whose entries expire after a fixed TTL.
// A TTL of zero keeps entries until they are deleted.
type TTLCache[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]item[V]
	stats Stats
}

type item[V any] struct {
	value  V
	expiry time.Time
}

// New creates a TTLCache
func New[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]item[V]),
	}
}

// Get returns the value stored under key unless it has expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	if !entry.expiry.IsZero() && c.now().After(entry.expiry) {
		c.stats.Misses++
		delete(c.items, key)
		var zero V
		return zero, false
	}

	c.stats.Hits++
	return entry.value, true
}

// Set stores value under key
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiry time.Time
	if c.ttl > 0 {
		expiry = c.now().Add(c.ttl)
	}

	c.items[key] = item[V]{value: value, expiry: expiry}
}

// Delete removes key
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Stats returns lookup counters and the number of stored entries
func (c *TTLCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = int64(len(c.items))
	return stats
}
