// Package cache provides a small TTL-keyed store used by the entity resolver.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL maps string keys to values that expire after a per-entry duration.
// Eviction is lazy: an expired entry is removed on the access that finds it,
// never by a background sweep. A Set always replaces any previous entry for
// the key regardless of its expiry.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

// New creates an empty cache using the real clock.
func New[V any]() *TTL[V] {
	return NewWithClock[V](time.Now)
}

// NewWithClock creates an empty cache with an injected clock, so tests can
// assert TTL behavior deterministically.
func NewWithClock[V any](now func() time.Time) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		now:     now,
	}
}

// Get returns the live value for key. An expired entry is evicted and
// reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set inserts or unconditionally overwrites the value for key.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Len reports the number of stored entries, including any not yet evicted.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
