package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingLoader(calls *atomic.Int32, value string) Loader {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestKey(t *testing.T) {
	base := NewKey("brands", "list")
	k := base.Append("pagina=1")

	if len(base) != 2 {
		t.Errorf("Append must not modify the receiver, got %v", base)
	}
	if !k.HasPrefix(NewKey("brands")) || !k.HasPrefix(base) {
		t.Errorf("expected %s to have prefixes brands and brands/list", k)
	}
	if k.HasPrefix(NewKey("brands", "detail")) {
		t.Errorf("unexpected prefix match")
	}
	if NewKey("a").HasPrefix(NewKey("a", "b")) {
		t.Errorf("a longer prefix cannot match")
	}
	if k.String() != "brands/list/pagina=1" {
		t.Errorf("unexpected string %q", k.String())
	}
}

func TestStore_FreshHitSkipsLoader(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{StaleTime: time.Minute, Now: clock.Now})
	var calls atomic.Int32
	key := NewKey("brands", "list")

	for i := 0; i < 3; i++ {
		v, err := s.Fetch(context.Background(), key, countingLoader(&calls, "page1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "page1" {
			t.Errorf("expected page1, got %v", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 load, got %d", calls.Load())
	}
}

func TestStore_StaleWhileRevalidate(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{StaleTime: time.Minute, Now: clock.Now})
	key := NewKey("brands", "list")

	if _, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) { return "old", nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(2 * time.Minute)

	v, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) { return "new", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "old" {
		t.Errorf("stale read should return cached value immediately, got %v", v)
	}

	s.Wait()

	got, ok := s.GetQueryData(key)
	if !ok || got != "new" {
		t.Errorf("expected background refetch to store new, got %v (ok=%v)", got, ok)
	}
}

func TestStore_StaleRefetchFailureKeepsLastGood(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{StaleTime: time.Minute, Now: clock.Now})
	key := NewKey("users", "list")

	_, _ = s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) { return "good", nil })
	clock.Advance(time.Hour)

	_, _ = s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) { return nil, errors.New("down") })
	s.Wait()

	got, ok := s.GetQueryData(key)
	if !ok || got != "good" {
		t.Errorf("expected last known good value, got %v (ok=%v)", got, ok)
	}
}

func TestStore_ConcurrentReadersShareOneLoad(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Minute})
	key := NewKey("quotations", "list")

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const readers = 10
	var wg sync.WaitGroup
	results := make(chan any, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Fetch(context.Background(), key, loader)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- v
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 load, got %d", calls.Load())
	}
	for v := range results {
		if v != "shared" {
			t.Errorf("expected shared, got %v", v)
		}
	}
}

func TestStore_InvalidateForcesRefetch(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	var calls atomic.Int32

	list1 := NewKey("categories", "list", "pagina=1")
	list2 := NewKey("categories", "list", "pagina=2")
	detail := NewKey("categories", "detail", "4")

	for _, k := range []Key{list1, list2, detail} {
		_, _ = s.Fetch(context.Background(), k, countingLoader(&calls, k.String()))
	}

	removed := s.Invalidate(NewKey("categories", "list"))
	if removed != 2 {
		t.Errorf("expected 2 removed entries, got %d", removed)
	}
	if _, ok := s.GetQueryData(detail); !ok {
		t.Error("detail entry outside the prefix should survive")
	}

	before := calls.Load()
	_, _ = s.Fetch(context.Background(), list1, countingLoader(&calls, "again"))
	if calls.Load() != before+1 {
		t.Errorf("expected a refetch after invalidation")
	}
}

func TestStore_InFlightLoadDoesNotRepopulateAfterInvalidate(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	key := NewKey("brands", "list")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	done := make(chan any, 1)
	go func() {
		v, _ := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			calls.Add(1)
			close(started)
			<-release
			return "before", nil
		})
		done <- v
	}()

	<-started
	s.Invalidate(NewKey("brands"))

	// A read after the invalidation must not attach to the old request.
	after, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "after", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after != "after" {
		t.Errorf("expected post-invalidation load, got %v", after)
	}

	close(release)
	if v := <-done; v != "before" {
		t.Errorf("the original reader should still receive its own result, got %v", v)
	}

	got, _ := s.GetQueryData(key)
	if got != "after" {
		t.Errorf("pre-invalidation result must not overwrite the cache, got %v", got)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 loads, got %d", calls.Load())
	}
}

func TestStore_SetQueryData(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	key := NewKey("quotations", "detail", "9")

	s.SetQueryData(key, "edited")

	var calls atomic.Int32
	v, err := s.Fetch(context.Background(), key, countingLoader(&calls, "server"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "edited" || calls.Load() != 0 {
		t.Errorf("expected fresh seeded value without load, got %v after %d loads", v, calls.Load())
	}
}

func TestStore_LoaderErrorNotCached(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	key := NewKey("origins", "list")
	boom := errors.New("boom")

	_, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("failed loads must not create entries")
	}
}

func TestStore_CallerCancellation(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	key := NewKey("brands", "list")
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStore_Collect(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(Options{StaleTime: time.Minute, GCTime: 30 * time.Minute, Now: clock.Now})

	old := NewKey("brands", "list")
	recent := NewKey("origins", "list")
	_, _ = s.Fetch(context.Background(), old, func(ctx context.Context) (any, error) { return 1, nil })

	clock.Advance(20 * time.Minute)
	_, _ = s.Fetch(context.Background(), recent, func(ctx context.Context) (any, error) { return 2, nil })

	clock.Advance(15 * time.Minute)
	if n := s.Collect(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if _, ok := s.GetQueryData(old); ok {
		t.Error("old entry should be evicted")
	}
	if _, ok := s.GetQueryData(recent); !ok {
		t.Error("recent entry should survive")
	}
}

func TestTypedFetch(t *testing.T) {
	s := NewStore(Options{StaleTime: time.Hour})
	key := NewKey("measurements", "list")

	n, err := Fetch(context.Background(), s, key, func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, err)
	}

	if _, err := Fetch(context.Background(), s, key, func(ctx context.Context) (string, error) { return "x", nil }); err == nil {
		t.Error("expected type mismatch error")
	}

	if v, ok := Peek[int](s, key); !ok || v != 42 {
		t.Errorf("expected peek 42, got %d (ok=%v)", v, ok)
	}
}
