package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestEventMeta_SpanName verifies the deterministic span naming scheme.
func TestEventMeta_SpanName(t *testing.T) {
	meta := EventMeta{EventType: "cache.invalidated", Operation: "update"}

	expected := "cachekit.notify.cache.invalidated"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestTracer_SpanAttributes verifies notification metadata lands on the span.
func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tr := NewTracer(tp.Tracer("test"))
	meta := EventMeta{
		EventType: "cache.invalidated",
		Operation: "rename",
		Key:       "notes:vault/a.md",
		CacheType: "notes",
	}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	got := make(map[attribute.Key]string)
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value.AsString()
	}
	want := map[attribute.Key]string{
		"event.type":       "cache.invalidated",
		"event.operation":  "rename",
		"event.key":        "notes:vault/a.md",
		"event.cache_type": "notes",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, got[k], v)
		}
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", spans[0].Status().Code)
	}
}

// TestTracer_OptionalAttributesOmitted verifies empty key/cache type are not recorded.
func TestTracer_OptionalAttributesOmitted(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tr := NewTracer(tp.Tracer("test"))
	_, span := tr.StartSpan(context.Background(), EventMeta{
		EventType: "cache.invalidated",
		Operation: "clear",
	})
	tr.EndSpan(span, nil)

	for _, kv := range recorder.Ended()[0].Attributes() {
		if kv.Key == "event.key" || kv.Key == "event.cache_type" {
			t.Errorf("attribute %s should be omitted when empty", kv.Key)
		}
	}
}

// TestTracer_EndSpanRecordsError verifies error status and event recording.
func TestTracer_EndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tr := NewTracer(tp.Tracer("test"))
	_, span := tr.StartSpan(context.Background(), EventMeta{
		EventType: "cache.invalidated",
		Operation: "update",
	})
	tr.EndSpan(span, errors.New("dispatch failed"))

	ended := recorder.Ended()[0]
	if ended.Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", ended.Status().Code)
	}
	if len(ended.Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

// TestNoopTracer verifies the no-op tracer produces usable spans.
func TestNoopTracer(t *testing.T) {
	tr := NewNoopTracer()
	ctx, span := tr.StartSpan(context.Background(), EventMeta{EventType: "cache.invalidated"})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer must return usable context and span")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
