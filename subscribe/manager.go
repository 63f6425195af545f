package subscribe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cachekit/event"
	"github.com/jonwraymond/cachekit/observe"
)

// Sentinel errors for subscription operations.
var (
	ErrNilCallback    = errors.New("subscribe: callback is nil")
	ErrEmptyEventType = errors.New("subscribe: event type is required")
)

// Options configures one subscription.
type Options struct {
	// EventType is the event type to receive. Required.
	EventType event.Type

	// Callback is invoked for each matching payload. Required.
	Callback Callback

	// Priority orders dispatch; higher runs earlier. Ties are broken by
	// registration order.
	Priority int

	// Filter narrows which payloads are delivered. Nil matches everything.
	Filter *Filter

	// Metadata carries caller-supplied tags for diagnostics queries.
	Metadata map[string]string
}

// GlobalStats summarizes active subscriptions.
type GlobalStats struct {
	Total       int
	ByEventType map[event.Type]int
	ByPriority  map[int]int
}

// Query filters the result of Subscriptions.
type Query struct {
	// EventType restricts to one event type when non-empty.
	EventType event.Type

	// MinPriority and MaxPriority bound the priority range when non-nil.
	MinPriority *int
	MaxPriority *int

	// MetadataKey requires the tag to be present; MetadataValue additionally
	// requires an exact value match when non-empty.
	MetadataKey   string
	MetadataValue string

	// IncludeInactive also returns deactivated subscriptions awaiting Cleanup.
	IncludeInactive bool
}

// Manager owns subscriptions and dispatches events to them in priority order.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: one ProcessEvent invokes matching callbacks sequentially in
//   non-increasing priority order, stable for ties.
// - Errors: a failing or panicking callback is logged and does not stop
//   delivery to later subscribers.
type Manager struct {
	logger  observe.Logger
	metrics observe.Metrics

	mu      sync.RWMutex
	byType  map[event.Type][]*Subscription // sorted: priority desc, seq asc
	byID    map[string]*Subscription
	nextSeq uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics wires dispatch metrics recording.
func WithMetrics(m observe.Metrics) ManagerOption {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a subscription manager. A nil logger disables logging.
func NewManager(logger observe.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = observe.NewNoopLogger()
	}
	m := &Manager{
		logger:  logger.WithComponent("subscribe"),
		metrics: observe.NewNoopMetrics(),
		byType:  make(map[event.Type][]*Subscription),
		byID:    make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a callback and returns its handle.
func (m *Manager) Subscribe(opts Options) (*Subscription, error) {
	if opts.EventType == "" {
		return nil, ErrEmptyEventType
	}
	if opts.Callback == nil {
		return nil, ErrNilCallback
	}

	md := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		md[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	s := &Subscription{
		id:        uuid.NewString(),
		eventType: opts.EventType,
		priority:  opts.Priority,
		seq:       m.nextSeq,
		metadata:  md,
		callback:  opts.Callback,
		manager:   m,
		filter:    opts.Filter,
		active:    true,
	}

	list := m.byType[opts.EventType]
	// Sorted on insert: first position with a strictly lower priority. Equal
	// priorities stay in registration order.
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].priority < s.priority
	})
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = s
	m.byType[opts.EventType] = list
	m.byID[s.id] = s

	return s, nil
}

// Unsubscribe deactivates a subscription by identifier. Returns false when no
// subscription with that identifier exists.
func (m *Manager) Unsubscribe(id string) bool {
	m.mu.RLock()
	s, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	s.Unsubscribe()
	return true
}

// ProcessEvent dispatches the payload to every active, filter-passing
// subscription for the event type, sequentially in priority order. A zero
// payload Timestamp is filled in.
func (m *Manager) ProcessEvent(ctx context.Context, t event.Type, p event.Payload) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	m.mu.RLock()
	list := make([]*Subscription, len(m.byType[t]))
	copy(list, m.byType[t])
	m.mu.RUnlock()

	start := time.Now()
	invoked := 0
	failures := 0

	for _, s := range list {
		if !s.IsActive() || !s.matches(p) {
			continue
		}
		invoked++
		if err := m.invoke(ctx, s, p); err != nil {
			failures++
			m.logger.Error(ctx, "subscriber callback failed",
				observe.Field{Key: "subscription_id", Value: s.id},
				observe.Field{Key: "event_type", Value: string(t)},
				observe.Field{Key: "priority", Value: s.priority},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	m.metrics.RecordDispatch(ctx, string(t), invoked, failures, time.Since(start))
}

// invoke runs one callback with panic isolation and stats recording.
func (m *Manager) invoke(ctx context.Context, s *Subscription, p event.Payload) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscribe: callback panicked: %v", r)
		}
		s.record(time.Since(start), err != nil)
	}()
	return s.callback(ctx, p)
}

// Stats summarizes active subscriptions by event type and priority.
func (m *Manager) Stats() GlobalStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gs := GlobalStats{
		ByEventType: make(map[event.Type]int),
		ByPriority:  make(map[int]int),
	}
	for t, list := range m.byType {
		for _, s := range list {
			if !s.IsActive() {
				continue
			}
			gs.Total++
			gs.ByEventType[t]++
			gs.ByPriority[s.priority]++
		}
	}
	return gs
}

// Subscriptions returns handles matching the query, for diagnostics.
func (m *Manager) Subscriptions(q Query) []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for t, list := range m.byType {
		if q.EventType != "" && q.EventType != t {
			continue
		}
		for _, s := range list {
			if !q.IncludeInactive && !s.IsActive() {
				continue
			}
			if q.MinPriority != nil && s.priority < *q.MinPriority {
				continue
			}
			if q.MaxPriority != nil && s.priority > *q.MaxPriority {
				continue
			}
			if q.MetadataKey != "" {
				v, ok := s.metadata[q.MetadataKey]
				if !ok {
					continue
				}
				if q.MetadataValue != "" && v != q.MetadataValue {
					continue
				}
			}
			out = append(out, s)
		}
	}
	return out
}

// Cleanup physically removes deactivated subscriptions and returns how many
// were dropped. Long-running processes call this so dead bookkeeping does not
// accumulate.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for t, list := range m.byType {
		kept := list[:0]
		for _, s := range list {
			if s.IsActive() {
				kept = append(kept, s)
			} else {
				delete(m.byID, s.id)
				removed++
			}
		}
		if len(kept) == 0 {
			delete(m.byType, t)
		} else {
			m.byType[t] = kept
		}
	}
	return removed
}

// Reset drops all subscriptions, active or not. Intended for test isolation.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byType = make(map[event.Type][]*Subscription)
	m.byID = make(map[string]*Subscription)
}
