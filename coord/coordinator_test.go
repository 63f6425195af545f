package coord

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/coalesce"
	"github.com/jonwraymond/cachekit/event"
	"github.com/jonwraymond/cachekit/subscribe"
)

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Reset)
	return c
}

func TestCoordinator_NotifyChangeInvalidatesRegisteredCaches(t *testing.T) {
	coord := newCoordinator(t)

	notes := cache.MustNew[string, string](16, cache.NoExpiryPolicy())
	if err := coord.RegisterCache("notes", notes); err != nil {
		t.Fatal(err)
	}
	notes.Set("notes:vault/a.md", "body")
	notes.Set("notes:vault/b.md", "body")

	err := coord.NotifyChange(context.Background(), "", Change{
		Operation: event.OpUpdate,
		Path:      "vault/a.md",
	})
	if err != nil {
		t.Fatalf("NotifyChange failed: %v", err)
	}

	if notes.Has("notes:vault/a.md") {
		t.Error("changed path should be invalidated")
	}
	if !notes.Has("notes:vault/b.md") {
		t.Error("unrelated path must survive")
	}
}

func TestCoordinator_NotifyChangeRejectsUnknownOperation(t *testing.T) {
	coord := newCoordinator(t)

	err := coord.NotifyChange(context.Background(), "k", Change{Operation: event.Operation(99)})
	if !errors.Is(err, event.ErrUnknownOperation) {
		t.Errorf("NotifyChange = %v, want ErrUnknownOperation", err)
	}
}

func TestCoordinator_InvalidationPrecedesSubscribers(t *testing.T) {
	coord := newCoordinator(t)

	notes := cache.MustNew[string, string](16, cache.NoExpiryPolicy())
	if err := coord.RegisterCache("notes", notes); err != nil {
		t.Fatal(err)
	}
	notes.Set("notes:vault/a.md", "stale")

	// A subscriber observing the cache must already see the entry gone.
	sawStale := false
	_, err := coord.Subscriptions().Subscribe(subscribe.Options{
		EventType: event.TypeCacheInvalidated,
		Callback: func(ctx context.Context, p event.Payload) error {
			sawStale = notes.Has("notes:vault/a.md")
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := coord.NotifyChange(context.Background(), "", Change{
		Operation: event.OpUpdate,
		Path:      "vault/a.md",
	}); err != nil {
		t.Fatal(err)
	}
	if sawStale {
		t.Error("subscribers must run after registry invalidation")
	}
}

func TestCoordinator_RegisterCoalescerDuplicate(t *testing.T) {
	coord := newCoordinator(t)

	co := coalesce.New[string](coalesce.Config{})
	if err := coord.RegisterCoalescer("reader", co); err != nil {
		t.Fatal(err)
	}
	err := coord.RegisterCoalescer("reader", co)
	if !errors.Is(err, ErrDuplicateCoalescer) {
		t.Errorf("duplicate RegisterCoalescer = %v, want ErrDuplicateCoalescer", err)
	}
}

func TestCoordinator_Diagnostics(t *testing.T) {
	coord := newCoordinator(t)

	notes := cache.MustNew[string, string](16, cache.NoExpiryPolicy())
	if err := coord.RegisterCache("notes", notes); err != nil {
		t.Fatal(err)
	}
	notes.Set("k", "v")
	notes.Get("k")

	co := coalesce.New[string](coalesce.Config{})
	if err := coord.RegisterCoalescer("reader", co); err != nil {
		t.Fatal(err)
	}
	if _, err := co.Do(context.Background(), "k", func(context.Context) (string, error) {
		return "v", nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := coord.Subscriptions().Subscribe(subscribe.Options{
		EventType: event.TypeCacheInvalidated,
		Callback:  func(context.Context, event.Payload) error { return nil },
	}); err != nil {
		t.Fatal(err)
	}

	d := coord.Diagnostics()
	if d.Caches["notes"].Hits != 1 {
		t.Errorf("cache stats = %+v, want 1 hit", d.Caches["notes"])
	}
	if d.Coalescers["reader"].TotalRequests != 1 {
		t.Errorf("coalescer stats = %+v, want 1 request", d.Coalescers["reader"])
	}
	if d.Subscriptions.Total != 1 {
		t.Errorf("subscription stats = %+v, want 1", d.Subscriptions)
	}
}

func TestCoordinator_Reset(t *testing.T) {
	coord := newCoordinator(t)

	notes := cache.MustNew[string, string](16, cache.NoExpiryPolicy())
	if err := coord.RegisterCache("notes", notes); err != nil {
		t.Fatal(err)
	}
	if _, err := coord.Subscriptions().Subscribe(subscribe.Options{
		EventType: event.TypeCacheInvalidated,
		Callback:  func(context.Context, event.Payload) error { return nil },
	}); err != nil {
		t.Fatal(err)
	}

	coord.Reset()

	d := coord.Diagnostics()
	if len(d.Caches) != 0 || d.Subscriptions.Total != 0 {
		t.Errorf("Reset should clear everything, got %+v", d)
	}
	// Names can be reused after Reset.
	if err := coord.RegisterCache("notes", notes); err != nil {
		t.Errorf("RegisterCache after Reset failed: %v", err)
	}
}

func TestGetThrough(t *testing.T) {
	c := cache.MustNew[string, int](16, cache.NoExpiryPolicy())
	co := coalesce.New[int](coalesce.Config{})

	var produced atomic.Int64
	producer := func(context.Context) (int, error) {
		produced.Add(1)
		return 42, nil
	}

	ctx := context.Background()
	v, err := GetThrough(ctx, c, co, "answer", producer)
	if err != nil || v != 42 {
		t.Fatalf("GetThrough = (%d, %v), want (42, nil)", v, err)
	}

	// Second read is served by the cache; the producer does not run again.
	v, err = GetThrough(ctx, c, co, "answer", producer)
	if err != nil || v != 42 {
		t.Fatalf("GetThrough = (%d, %v), want (42, nil)", v, err)
	}
	if got := produced.Load(); got != 1 {
		t.Errorf("producer ran %d times, want 1", got)
	}
}

func TestGetThrough_ErrorIsNotCached(t *testing.T) {
	c := cache.MustNew[string, int](16, cache.NoExpiryPolicy())
	co := coalesce.New[int](coalesce.Config{})

	boom := errors.New("read failed")
	_, err := GetThrough(context.Background(), c, co, "k", func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetThrough error = %v, want %v", err, boom)
	}
	if c.Has("k") {
		t.Error("a failed production must not populate the cache")
	}

	// A retry after the failure can succeed and populate.
	v, err := GetThrough(context.Background(), c, co, "k", func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("retry = (%d, %v), want (7, nil)", v, err)
	}
	if !c.Has("k") {
		t.Error("successful retry should populate the cache")
	}
}
