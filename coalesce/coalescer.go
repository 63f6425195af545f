package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultPendingTTL bounds how long a pending production keeps coalescing new
// callers when its producer has not settled.
const DefaultPendingTTL = 30 * time.Second

// Config configures a Coalescer.
type Config struct {
	// PendingTTL is the age past which a pending production is reclaimed by
	// the opportunistic sweep. Default: DefaultPendingTTL.
	PendingTTL time.Duration
}

// Stats reports coalescing effectiveness.
type Stats struct {
	// Hits counts calls that joined an already-pending production.
	Hits uint64
	// Misses counts producer invocations.
	Misses uint64
	// TotalRequests counts all Do calls.
	TotalRequests uint64
	// HitRate is Hits/TotalRequests, zero when no calls have occurred.
	HitRate float64
	// AverageResponseTime is measured over settled productions only, from
	// producer invocation to settlement.
	AverageResponseTime time.Duration
	// ActiveRequests is the number of currently pending productions.
	ActiveRequests int
}

// Coalescer deduplicates concurrent productions per key.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Sharing: every caller coalesced into one production observes the
//   identical value or the identical error.
// - Retry: once a production settles, the next Do for that key starts fresh.
type Coalescer[V any] struct {
	ttl   time.Duration
	group singleflight.Group

	mu            sync.Mutex
	pending       map[string]time.Time // key -> production start
	totalRequests uint64
	misses        uint64
	settled       uint64
	produceTime   time.Duration
}

// New creates a coalescer. A non-positive PendingTTL falls back to the default.
func New[V any](cfg Config) *Coalescer[V] {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Coalescer[V]{
		ttl:     ttl,
		pending: make(map[string]time.Time),
	}
}

// Do returns the outcome of producer for key, invoking it only if no
// production for key is pending. Producer failures are shared with every
// coalesced caller and are not retried automatically; the pending entry is
// removed on settlement so a later Do can retry.
//
// The producer receives the context of the caller that started the
// production. Do does not cancel a producer on its own; stuck productions are
// reclaimed per Config.PendingTTL.
func (c *Coalescer[V]) Do(ctx context.Context, key string, producer func(context.Context) (V, error)) (V, error) {
	if producer == nil {
		panic("coalesce: nil producer")
	}

	c.sweep(time.Now())

	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		start := time.Now()
		c.mu.Lock()
		c.misses++
		c.pending[key] = start
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			// The sweep may have reclaimed this production and a newer one
			// may already be pending under the same key.
			if started, ok := c.pending[key]; ok && started.Equal(start) {
				delete(c.pending, key)
			}
			c.settled++
			c.produceTime += time.Since(start)
			c.mu.Unlock()
		}()

		return producer(ctx)
	})

	var zero V
	if err != nil {
		return zero, err
	}
	out, _ := v.(V)
	return out, nil
}

// sweep reclaims pending productions older than the configured TTL. Future Do
// calls for a reclaimed key start a new production; callers already awaiting
// the old one are unaffected.
func (c *Coalescer[V]) sweep(now time.Time) {
	c.mu.Lock()
	var stale []string
	for key, started := range c.pending {
		if now.Sub(started) > c.ttl {
			stale = append(stale, key)
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()

	for _, key := range stale {
		c.group.Forget(key)
	}
}

// Len returns the number of pending productions, reclaiming stale ones first
// so the count is accurate.
func (c *Coalescer[V]) Len() int {
	c.sweep(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Clear drops all pending bookkeeping without cancelling in-flight producers.
// Callers already awaiting them are unaffected.
func (c *Coalescer[V]) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	c.pending = make(map[string]time.Time)
	c.mu.Unlock()

	for _, key := range keys {
		c.group.Forget(key)
	}
}

// Stats returns coalescing counters. Hits are calls that joined a pending
// production; response time is measured for settled productions only.
func (c *Coalescer[V]) Stats() Stats {
	c.sweep(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Misses:         c.misses,
		TotalRequests:  c.totalRequests,
		ActiveRequests: len(c.pending),
	}
	if c.totalRequests >= c.misses {
		s.Hits = c.totalRequests - c.misses
	}
	if c.totalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(c.totalRequests)
	}
	if c.settled > 0 {
		s.AverageResponseTime = c.produceTime / time.Duration(c.settled)
	}
	return s
}
