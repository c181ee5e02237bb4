// Package cache provides a bounded, TTL-expiring in-memory cache used to
// memoize remote analysis results and the derived selection decision.
package cache

import (
	"sync"
	"time"
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Stores    uint64 `json:"stores"`
	Evictions uint64 `json:"evictions"`
	Sweeps    uint64 `json:"sweeps"`
	Size      int    `json:"size"`
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a string-keyed store with TTL expiry and bounded capacity.
//
// Every operation takes a single mutex for its full critical section; hold
// times are map and pointer operations only, so there is no separate read
// path. Expiry is lazy: Get removes an expired entry and reports a miss, and
// the owning service is expected to call SweepExpired periodically. When the
// cache is at capacity, Set evicts the entry with the oldest insertion time.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry[V]
	stats   Stats
	now     func() time.Time
}

// DefaultTTL and DefaultMaxSize mirror the service defaults: five minutes,
// one thousand entries.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 1000
)

// New returns an empty cache with the given TTL and capacity. Non-positive
// arguments fall back to the defaults.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// NewWithClock returns a cache that reads time from now instead of time.Now.
// Used by tests to simulate TTL expiry without sleeping.
func NewWithClock[V any](ttl time.Duration, maxSize int, now func() time.Time) *Cache[V] {
	c := New[V](ttl, maxSize)
	c.now = now
	return c
}

// Get returns the value for key if present and younger than the TTL. An entry
// past its TTL is removed and counted as a miss, exactly like an absent key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.insertedAt) < c.ttl {
			c.stats.Hits++
			return e.value, true
		}
		delete(c.entries, key)
	}

	c.stats.Misses++
	var zero V
	return zero, false
}

// Set stores value under key. If the cache is at capacity and key is not
// already present, the entry with the oldest insertion time is evicted first.
// Overwriting an existing key never evicts and never resets prior statistics.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = entry[V]{value: value, insertedAt: c.now()}
	c.stats.Stores++
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes every entry. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
}

// SweepExpired removes all entries past their TTL and returns how many were
// removed. Intended to be called periodically by the owning service; the
// cache runs no background goroutine of its own.
func (c *Cache[V]) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.stats.Sweeps++
	}
	return removed
}

// Stats returns a snapshot of the counters and current size.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.entries)
	return s
}

// Len returns the number of live entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// evictOldestLocked removes the single entry with the smallest insertedAt.
// Caller must hold c.mu.
func (c *Cache[V]) evictOldestLocked() {
	if len(c.entries) == 0 {
		return
	}

	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.insertedAt
			first = false
		}
	}

	delete(c.entries, oldestKey)
	c.stats.Evictions++
}
