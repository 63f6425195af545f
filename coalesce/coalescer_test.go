package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescer_SingleCaller(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	got, err := c.Do(ctx, "k", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Do = %d, want 42", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len after settle = %d, want 0", c.Len())
	}
}

func TestCoalescer_ConcurrentCallersShareOneProduction(t *testing.T) {
	c := New[string](Config{})
	ctx := context.Background()

	var invocations atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	producer := func(context.Context) (string, error) {
		invocations.Add(1)
		close(started)
		<-release
		return "shared", nil
	}

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Do(ctx, "k", producer)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Do(ctx, "k", func(context.Context) (string, error) {
				invocations.Add(1)
				return "duplicate", nil
			})
		}(i)
	}

	// Give the joiners time to coalesce before releasing the producer.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := invocations.Load(); n != 1 {
		t.Errorf("producer invoked %d times, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d got error: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("caller %d got %q, want the shared value", i, results[i])
		}
	}

	s := c.Stats()
	if s.Misses != 1 {
		t.Errorf("misses = %d, want 1", s.Misses)
	}
	if s.Hits != callers-1 {
		t.Errorf("hits = %d, want %d", s.Hits, callers-1)
	}
}

func TestCoalescer_FailuresAreShared(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	wantErr := errors.New("backend unavailable")
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = c.Do(ctx, "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 0, wantErr
		})
	}()
	<-started

	for i := 1; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Do(ctx, "k", func(context.Context) (int, error) {
				t.Error("joined caller must not invoke its producer")
				return 0, nil
			})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("caller %d got %v, want the shared error", i, err)
		}
	}
}

func TestCoalescer_RetryAfterSettlement(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	if _, err := c.Do(ctx, "k", func(context.Context) (int, error) {
		return 0, errors.New("first attempt fails")
	}); err == nil {
		t.Fatal("first Do should fail")
	}

	// A settled failure is not sticky: the next call runs a fresh producer.
	got, err := c.Do(ctx, "k", func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got != 7 {
		t.Errorf("retry = %d, want 7", got)
	}
}

func TestCoalescer_SweepReclaimsStuckProduction(t *testing.T) {
	c := New[int](Config{PendingTTL: 50 * time.Millisecond})
	ctx := context.Background()

	started := make(chan struct{})
	go func() {
		_, _ = c.Do(ctx, "k", func(context.Context) (int, error) {
			close(started)
			select {} // never settles
		})
	}()
	<-started

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 while production is pending", c.Len())
	}

	time.Sleep(70 * time.Millisecond)

	if c.Len() != 0 {
		t.Errorf("Len = %d after TTL, want 0", c.Len())
	}

	// The reclaimed key accepts a fresh production.
	got, err := c.Do(ctx, "k", func(context.Context) (int, error) {
		return 5, nil
	})
	if err != nil {
		t.Fatalf("Do after sweep failed: %v", err)
	}
	if got != 5 {
		t.Errorf("Do after sweep = %d, want 5", got)
	}
}

func TestCoalescer_Clear(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	go func() {
		v, _ := c.Do(ctx, "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 9, nil
		})
		done <- v
	}()
	<-started

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}

	// The caller already awaiting the producer is unaffected.
	close(release)
	if v := <-done; v != 9 {
		t.Errorf("awaiting caller got %d, want 9", v)
	}
}

func TestCoalescer_Stats(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	if s := c.Stats(); s.HitRate != 0 {
		t.Errorf("hit rate with no calls = %f, want 0", s.HitRate)
	}

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := c.Do(ctx, key, func(context.Context) (int, error) {
			time.Sleep(5 * time.Millisecond)
			return i, nil
		}); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
	}

	s := c.Stats()
	if s.TotalRequests != 3 || s.Misses != 3 || s.Hits != 0 {
		t.Errorf("stats = %+v, want 3 requests, 3 misses", s)
	}
	if s.AverageResponseTime <= 0 {
		t.Error("average response time should be measured for settled productions")
	}
	if s.ActiveRequests != 0 {
		t.Errorf("active = %d, want 0", s.ActiveRequests)
	}
}

func TestCoalescer_DistinctKeysDoNotCoalesce(t *testing.T) {
	c := New[int](Config{})
	ctx := context.Background()

	var invocations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = c.Do(ctx, fmt.Sprintf("k%d", i), func(context.Context) (int, error) {
				invocations.Add(1)
				time.Sleep(10 * time.Millisecond)
				return i, nil
			})
		}(i)
	}
	wg.Wait()

	if n := invocations.Load(); n != 4 {
		t.Errorf("producer invoked %d times, want 4 (one per key)", n)
	}
}
