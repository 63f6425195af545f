package cache

import (
	"sync"
	"time"
)

// NoExpiration disables expiry for a single entry even when the cache has a
// default TTL.
const NoExpiration time.Duration = -1

// Stats reports cache efficacy counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// entry is one cached value. An entry present in the lookup map is always
// linked into the LRU list and vice versa.
type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
	expiresAt  time.Time // zero = never expires
	prev, next *entry[K, V]
}

// BoundedCache is a fixed-capacity key/value store with least-recently-used
// eviction and optional per-entry TTL.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: operations never fail under normal use; only construction can.
type BoundedCache[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	policy    Policy
	onEvict   func(K, V)
	entries   map[K]*entry[K, V]
	head      *entry[K, V] // most recently used
	tail      *entry[K, V] // least recently used
	hits      uint64
	misses    uint64
	evictions uint64
}

// Option configures a BoundedCache.
type Option[K comparable, V any] func(*BoundedCache[K, V])

// WithOnEvict registers a callback invoked after an entry is evicted to
// satisfy the capacity bound. The callback runs outside the cache lock.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *BoundedCache[K, V]) {
		c.onEvict = fn
	}
}

// New creates a bounded cache. A non-positive capacity is a configuration
// error and fails fast.
func New[K comparable, V any](capacity int, policy Policy, opts ...Option[K, V]) (*BoundedCache[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	c := &BoundedCache[K, V]{
		capacity: capacity,
		policy:   policy,
		entries:  make(map[K]*entry[K, V], capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew[K comparable, V any](capacity int, policy Policy, opts ...Option[K, V]) *BoundedCache[K, V] {
	c, err := New[K, V](capacity, policy, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Set inserts or replaces a value using the cache's default TTL and marks the
// key as most recently used.
func (c *BoundedCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL inserts or replaces a value with an explicit TTL. A ttl of zero
// falls back to the default policy; NoExpiration pins the entry regardless of
// the default. Inserting a new key beyond capacity evicts the least recently
// used entry first.
func (c *BoundedCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	now := time.Now()
	expiresAt := c.expiryFor(now, ttl)

	var evictedKey K
	var evictedValue V
	evicted := false

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.insertedAt = now
		e.expiresAt = expiresAt
		c.moveToFront(e)
		c.mu.Unlock()
		return
	}

	if len(c.entries) >= c.capacity && c.tail != nil {
		victim := c.tail
		c.removeEntry(victim)
		c.evictions++
		evictedKey, evictedValue, evicted = victim.key, victim.value, true
	}

	e := &entry[K, V]{key: key, value: value, insertedAt: now, expiresAt: expiresAt}
	c.entries[key] = e
	c.pushFront(e)
	c.mu.Unlock()

	if evicted && c.onEvict != nil {
		c.onEvict(evictedKey, evictedValue)
	}
}

// Get retrieves a value and marks the key as most recently used. An entry
// whose TTL has elapsed is removed and reported as a miss.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e, time.Now()) {
		c.removeEntry(e)
		c.misses++
		return zero, false
	}

	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Has reports whether a live entry exists for the key. Expiry semantics match
// Get, but Has neither updates LRU order nor affects hit/miss statistics.
func (c *BoundedCache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expired(e, time.Now()) {
		c.removeEntry(e)
		return false
	}
	return true
}

// Delete removes an entry. Returns true if something was removed.
func (c *BoundedCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeEntry(e)
	return true
}

// DeleteFunc removes every entry whose key matches and returns how many were
// removed. The whole pass runs under one lock so callers see a consistent cut.
func (c *BoundedCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if match(key) {
			c.removeEntry(e)
			removed++
		}
	}
	return removed
}

// Clear removes all entries. Statistics are preserved.
func (c *BoundedCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V], c.capacity)
	c.head = nil
	c.tail = nil
}

// Len returns the number of live entries, purging expired ones so the count
// is accurate.
func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, e := range c.entries {
		if c.expired(e, now) {
			c.removeEntry(e)
		}
	}
	return len(c.entries)
}

// Capacity returns the configured capacity bound.
func (c *BoundedCache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns hit/miss counters. Hit rate is hits/(hits+misses), zero when
// no accesses have occurred.
func (c *BoundedCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// ResetStats zeroes the hit/miss counters.
func (c *BoundedCache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *BoundedCache[K, V]) expiryFor(now time.Time, ttl time.Duration) time.Time {
	effective := c.policy.EffectiveTTL(ttl)
	if effective <= 0 {
		return time.Time{}
	}
	return now.Add(effective)
}

func (c *BoundedCache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// removeEntry unlinks the entry from both the map and the LRU list. Callers
// hold the lock.
func (c *BoundedCache[K, V]) removeEntry(e *entry[K, V]) {
	delete(c.entries, e.key)
	c.unlink(e)
}

func (c *BoundedCache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *BoundedCache[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *BoundedCache[K, V]) moveToFront(e *entry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}
