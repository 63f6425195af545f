package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/coalesce"
	"github.com/jonwraymond/cachekit/event"
	"github.com/jonwraymond/cachekit/observe"
	"github.com/jonwraymond/cachekit/registry"
	"github.com/jonwraymond/cachekit/subscribe"
)

// ErrDuplicateCoalescer is returned when a coalescer name is registered twice.
var ErrDuplicateCoalescer = errors.New("coord: coalescer name already registered")

// Config configures a Coordinator.
type Config struct {
	// Logger is used by the bus, registry and subscription manager. Nil
	// disables logging.
	Logger observe.Logger

	// Observer supplies the meter and tracer. Nil disables telemetry.
	Observer observe.Observer
}

// Change describes one mutation of underlying data, reported after the write
// it represents has succeeded.
type Change struct {
	Operation event.Operation
	Path      string
	NewPath   string // rename destination
	CacheType string
	Metadata  map[string]any
}

// CoalescerStats is the statistics surface a coalescer exposes for
// diagnostics. *coalesce.Coalescer[V] satisfies it for any V.
type CoalescerStats interface {
	Stats() coalesce.Stats
}

// Diagnostics aggregates the health-relevant statistics of the whole
// coordination layer.
type Diagnostics struct {
	Caches        map[string]cache.Stats
	Coalescers    map[string]coalesce.Stats
	Subscriptions subscribe.GlobalStats
}

// Coordinator is the composition root for the coordination layer.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Lifecycle: one instance per process role; Reset restores a clean slate
//   for test isolation.
type Coordinator struct {
	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	bus      *event.Bus
	registry *registry.Registry
	subs     *subscribe.Manager

	mu         sync.Mutex
	coalescers map[string]CoalescerStats
}

// New creates a coordinator and its bus, registry and subscription manager.
func New(cfg Config) (*Coordinator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NewNoopLogger()
	}

	metrics := observe.NewNoopMetrics()
	tracer := observe.NewNoopTracer()
	if cfg.Observer != nil {
		m, err := observe.NewMetrics(cfg.Observer.Meter())
		if err != nil {
			return nil, fmt.Errorf("coord: failed to create metrics: %w", err)
		}
		metrics = m
		tracer = observe.NewTracer(cfg.Observer.Tracer())
	}

	bus := event.NewBus(logger)
	return &Coordinator{
		logger:     logger.WithComponent("coord"),
		metrics:    metrics,
		tracer:     tracer,
		bus:        bus,
		registry:   registry.New(bus, logger, registry.WithMetrics(metrics)),
		subs:       subscribe.NewManager(logger, subscribe.WithMetrics(metrics)),
		coalescers: make(map[string]CoalescerStats),
	}, nil
}

// Bus returns the shared event bus.
func (c *Coordinator) Bus() *event.Bus {
	return c.bus
}

// Registry returns the cache registry.
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Subscriptions returns the subscription manager.
func (c *Coordinator) Subscriptions() *subscribe.Manager {
	return c.subs
}

// Metrics returns the metrics recorder shared by the coordination layer, for
// collaborators that want to record cache accesses against the same meter.
func (c *Coordinator) Metrics() observe.Metrics {
	return c.metrics
}

// RegisterCache adds a cache to central invalidation under a unique name.
func (c *Coordinator) RegisterCache(name string, inv registry.Invalidator) error {
	return c.registry.Register(name, inv)
}

// RegisterCoalescer tracks a coalescer's statistics under a unique name for
// diagnostics.
func (c *Coordinator) RegisterCoalescer(name string, src CoalescerStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.coalescers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCoalescer, name)
	}
	c.coalescers[name] = src
	return nil
}

// NotifyChange is the single write-side entry point. It publishes the change
// on the bus (which applies registry invalidation synchronously) and then
// dispatches to prioritized subscribers. Callers invoke it only after the
// mutation it describes has succeeded, so invalidation never races ahead of
// the write.
func (c *Coordinator) NotifyChange(ctx context.Context, key string, ch Change) error {
	if !ch.Operation.Valid() {
		return fmt.Errorf("%w: %d", event.ErrUnknownOperation, ch.Operation)
	}

	p := event.Payload{
		Key:       key,
		Path:      ch.Path,
		NewPath:   ch.NewPath,
		Operation: ch.Operation,
		CacheType: ch.CacheType,
		Metadata:  ch.Metadata,
		Timestamp: time.Now(),
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.EventMeta{
		EventType: string(event.TypeCacheInvalidated),
		Operation: ch.Operation.String(),
		Key:       key,
		CacheType: ch.CacheType,
	})
	defer c.tracer.EndSpan(span, nil)

	c.bus.Notify(event.TypeCacheInvalidated, p)
	c.subs.ProcessEvent(ctx, event.TypeCacheInvalidated, p)
	return nil
}

// Diagnostics reports cache efficacy and listener health across the layer.
func (c *Coordinator) Diagnostics() Diagnostics {
	c.mu.Lock()
	coalescers := make(map[string]coalesce.Stats, len(c.coalescers))
	for name, src := range c.coalescers {
		coalescers[name] = src.Stats()
	}
	c.mu.Unlock()

	return Diagnostics{
		Caches:        c.registry.Stats(),
		Coalescers:    coalescers,
		Subscriptions: c.subs.Stats(),
	}
}

// Reset restores a clean slate: all bus subscribers, registrations and
// subscriptions are dropped. Intended for test isolation.
func (c *Coordinator) Reset() {
	c.registry.Reset()
	c.subs.Reset()
	c.bus.Reset()

	c.mu.Lock()
	c.coalescers = make(map[string]CoalescerStats)
	c.mu.Unlock()
}

// GetThrough is the read-side composition: consult the cache, coalesce the
// production on a miss, then store the result. The coalescer knows nothing
// about the cache; this helper owns that composition for callers.
func GetThrough[V any](
	ctx context.Context,
	c *cache.BoundedCache[string, V],
	co *coalesce.Coalescer[V],
	key string,
	producer func(context.Context) (V, error),
) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := co.Do(ctx, key, producer)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, v)
	return v, nil
}
