package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/event"
	"github.com/jonwraymond/cachekit/observe"
)

// Sentinel errors for registry operations.
var (
	// ErrDuplicateCache is returned when a name is registered twice.
	// Silently overwriting a registration would hide a configuration bug.
	ErrDuplicateCache = errors.New("registry: cache name already registered")

	// ErrEmptyName is returned when a cache is registered without a name.
	ErrEmptyName = errors.New("registry: cache name is required")

	// ErrNilCache is returned when a nil cache handle is registered.
	ErrNilCache = errors.New("registry: cache is nil")
)

// Invalidator is the invalidation surface the registry needs from a cache.
// The registry never controls a cache's lifetime, only this surface.
// *cache.BoundedCache[string, V] satisfies it for any V.
type Invalidator interface {
	DeleteFunc(match func(key string) bool) int
	Clear()
	Stats() cache.Stats
}

// Registry is a directory of centrally-invalidated caches.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: holds non-owning handles; Reset detaches everything.
type Registry struct {
	bus     *event.Bus
	logger  observe.Logger
	metrics observe.Metrics

	mu     sync.RWMutex
	caches map[string]Invalidator
	order  []string // registration order, for deterministic passes
	unsub  func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics wires invalidation metrics recording.
func WithMetrics(m observe.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates a registry listening on the given bus. A nil logger disables
// logging. The bus subscription is taken lazily on first registration.
func New(bus *event.Bus, logger observe.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = observe.NewNoopLogger()
	}
	r := &Registry{
		bus:     bus,
		logger:  logger.WithComponent("registry"),
		metrics: observe.NewNoopMetrics(),
		caches:  make(map[string]Invalidator),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a cache under a unique name. Registering the same name twice
// is a configuration error and fails loudly.
func (r *Registry) Register(name string, c Invalidator) error {
	if name == "" {
		return ErrEmptyName
	}
	if c == nil {
		return ErrNilCache
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caches[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCache, name)
	}
	r.caches[name] = c
	r.order = append(r.order, name)

	// First registration attaches the bus subscription.
	if r.unsub == nil && r.bus != nil {
		r.unsub = r.bus.Subscribe(event.TypeCacheInvalidated, r.onInvalidated)
	}
	return nil
}

// Cache returns the handle registered under name.
func (r *Registry) Cache(name string) (Invalidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[name]
	return c, ok
}

// Caches returns a copy of the name-to-handle mapping.
func (r *Registry) Caches() map[string]Invalidator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Invalidator, len(r.caches))
	for name, c := range r.caches {
		out[name] = c
	}
	return out
}

// Names returns the registered cache names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns each registered cache's counters by name.
func (r *Registry) Stats() map[string]cache.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]cache.Stats, len(r.caches))
	for name, c := range r.caches {
		out[name] = c.Stats()
	}
	return out
}

// Reset removes all registrations and detaches the bus subscription.
// Intended for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	r.caches = make(map[string]Invalidator)
	r.order = nil
}

// onInvalidated applies one invalidation event across every registered cache.
func (r *Registry) onInvalidated(p event.Payload) {
	start := time.Now()

	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	caches := make([]Invalidator, 0, len(names))
	for _, name := range names {
		caches = append(caches, r.caches[name])
	}
	r.mu.RUnlock()

	removed := 0
	if p.Operation == event.OpClear && p.Key == "" && p.Path == "" {
		// A clear without a key drops everything.
		for _, c := range caches {
			c.Clear()
		}
	} else {
		targets := invalidationTargets(p)
		if len(targets) == 0 {
			return
		}
		match := func(stored string) bool {
			return keyReferences(stored, targets)
		}
		for _, c := range caches {
			removed += c.DeleteFunc(match)
		}
	}

	elapsed := time.Since(start)
	r.metrics.RecordInvalidation(context.Background(), p.Operation.String(), removed, elapsed)
	r.logger.Debug(context.Background(), "invalidation applied",
		observe.Field{Key: "operation", Value: p.Operation.String()},
		observe.Field{Key: "key", Value: p.Key},
		observe.Field{Key: "path", Value: p.Path},
		observe.Field{Key: "removed", Value: removed},
		observe.Field{Key: "caches", Value: len(caches)},
		observe.Field{Key: "duration_ms", Value: elapsed.Milliseconds()},
	)
}
