package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache coordination metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording is best-effort.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAccess records a cache read with its hit/miss outcome.
	RecordAccess(ctx context.Context, cacheName string, hit bool)

	// RecordEviction records an entry removed to satisfy the capacity bound.
	RecordEviction(ctx context.Context, cacheName string)

	// RecordInvalidation records one invalidation pass across registered caches.
	RecordInvalidation(ctx context.Context, operation string, removed int, duration time.Duration)

	// RecordDispatch records one subscription dispatch cycle.
	RecordDispatch(ctx context.Context, eventType string, subscribers, failures int, duration time.Duration)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter             metric.Meter
	accessCount       metric.Int64Counter
	evictionCount     metric.Int64Counter
	invalidatedCount  metric.Int64Counter
	dispatchErrors    metric.Int64Counter
	invalidationHist  metric.Float64Histogram
	dispatchHist      metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	accessCount, err := meter.Int64Counter(
		"cachekit.cache.accesses",
		metric.WithDescription("Total cache reads, partitioned by outcome"),
		metric.WithUnit("{access}"),
	)
	if err != nil {
		return nil, err
	}

	evictionCount, err := meter.Int64Counter(
		"cachekit.cache.evictions",
		metric.WithDescription("Entries evicted to satisfy the capacity bound"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	invalidatedCount, err := meter.Int64Counter(
		"cachekit.invalidation.removed",
		metric.WithDescription("Entries removed by invalidation events"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter(
		"cachekit.dispatch.errors",
		metric.WithDescription("Subscriber callbacks that returned an error or panicked"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	invalidationHist, err := meter.Float64Histogram(
		"cachekit.invalidation.duration_ms",
		metric.WithDescription("Invalidation pass duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatchHist, err := meter.Float64Histogram(
		"cachekit.dispatch.duration_ms",
		metric.WithDescription("Subscription dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:            meter,
		accessCount:      accessCount,
		evictionCount:    evictionCount,
		invalidatedCount: invalidatedCount,
		dispatchErrors:   dispatchErrors,
		invalidationHist: invalidationHist,
		dispatchHist:     dispatchHist,
	}, nil
}

// RecordAccess records a cache read with its hit/miss outcome.
func (m *metricsImpl) RecordAccess(ctx context.Context, cacheName string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.accessCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", cacheName),
		attribute.String("cache.outcome", outcome),
	))
}

// RecordEviction records an entry evicted from a cache.
func (m *metricsImpl) RecordEviction(ctx context.Context, cacheName string) {
	m.evictionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", cacheName),
	))
}

// RecordInvalidation records one invalidation pass.
func (m *metricsImpl) RecordInvalidation(ctx context.Context, operation string, removed int, duration time.Duration) {
	opt := metric.WithAttributes(attribute.String("event.operation", operation))
	m.invalidatedCount.Add(ctx, int64(removed), opt)
	m.invalidationHist.Record(ctx, float64(duration.Microseconds())/1000.0, opt)
}

// RecordDispatch records one subscription dispatch cycle.
func (m *metricsImpl) RecordDispatch(ctx context.Context, eventType string, subscribers, failures int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.Int("dispatch.subscribers", subscribers),
	)
	if failures > 0 {
		m.dispatchErrors.Add(ctx, int64(failures), opt)
	}
	m.dispatchHist.Record(ctx, float64(duration.Microseconds())/1000.0, opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordAccess(context.Context, string, bool) {}
func (noopMetrics) RecordEviction(context.Context, string)     {}
func (noopMetrics) RecordInvalidation(context.Context, string, int, time.Duration) {
}
func (noopMetrics) RecordDispatch(context.Context, string, int, int, time.Duration) {
}

// NewNoopMetrics returns a Metrics implementation that discards everything.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noopMetrics{}
)
