package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// EventMeta describes one change notification for telemetry purposes.
type EventMeta struct {
	EventType string // Event type being dispatched (required)
	Operation string // Operation variant (update, delete, rename, expire, clear)
	Key       string // Changed key (may be empty)
	CacheType string // Cache category the event concerns (may be empty)
}

// SpanName returns the deterministic span name for this notification.
// Format: cachekit.notify.<event-type>
func (m EventMeta) SpanName() string {
	return "cachekit.notify." + m.EventType
}

// Tracer wraps OpenTelemetry tracing with notification-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a change notification.
	StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with notification metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("event.type", meta.EventType),
		attribute.String("event.operation", meta.Operation),
	}
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("event.key", meta.Key))
	}
	if meta.CacheType != "" {
		attrs = append(attrs, attribute.String("event.cache_type", meta.CacheType))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}

// Ensure implementations satisfy Tracer
var (
	_ Tracer = (*tracerImpl)(nil)
	_ Tracer = (*noopTracer)(nil)
)
