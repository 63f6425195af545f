package subscribe

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/cachekit/event"
)

// Callback receives a matching payload during dispatch. Returning an error
// marks the invocation as failed; it does not stop delivery to later
// subscribers.
type Callback func(ctx context.Context, p event.Payload) error

// SubscriptionStats reports per-subscription dispatch counters.
type SubscriptionStats struct {
	Invocations          uint64
	Failures             uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	LastInvokedAt        time.Time
}

// Subscription is the handle returned by Manager.Subscribe. The manager
// retains bookkeeping after Unsubscribe until a Cleanup pass removes it.
type Subscription struct {
	id        string
	eventType event.Type
	priority  int
	seq       uint64 // registration order, breaks priority ties
	metadata  map[string]string
	callback  Callback
	manager   *Manager

	mu          sync.Mutex
	filter      *Filter
	active      bool
	invocations uint64
	failures    uint64
	totalExec   time.Duration
	lastInvoked time.Time
}

// ID returns the opaque unique identifier of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// EventType returns the subscribed event type.
func (s *Subscription) EventType() event.Type {
	return s.eventType
}

// Priority returns the declared priority. Higher runs earlier.
func (s *Subscription) Priority() int {
	return s.priority
}

// Metadata returns a copy of the caller-supplied tags.
func (s *Subscription) Metadata() map[string]string {
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// IsActive reports whether the subscription still receives dispatches.
func (s *Subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Unsubscribe deactivates the subscription. Idempotent. The bookkeeping
// remains until Manager.Cleanup removes it; there is no reactivation.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// UpdateFilter replaces the subscription's filter. A nil filter matches
// everything.
func (s *Subscription) UpdateFilter(f *Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Stats returns the subscription's dispatch counters.
func (s *Subscription) Stats() SubscriptionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SubscriptionStats{
		Invocations:        s.invocations,
		Failures:           s.failures,
		TotalExecutionTime: s.totalExec,
		LastInvokedAt:      s.lastInvoked,
	}
	if s.invocations > 0 {
		st.AverageExecutionTime = s.totalExec / time.Duration(s.invocations)
	}
	return st
}

// matches evaluates the current filter against the payload.
func (s *Subscription) matches(p event.Payload) bool {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	return f.Matches(p)
}

// record updates dispatch counters after an invocation, failed or not.
func (s *Subscription) record(d time.Duration, failed bool) {
	s.mu.Lock()
	s.invocations++
	if failed {
		s.failures++
	}
	s.totalExec += d
	s.lastInvoked = time.Now()
	s.mu.Unlock()
}
