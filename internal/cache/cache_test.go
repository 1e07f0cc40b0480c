package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for condition")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func counter(value any, calls *atomic.Int32) Fetcher {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestKey(t *testing.T) {
	k := NewKey("audit", "p1", "2")

	if !k.HasPrefix(Key{"audit", "p1"}) {
		t.Error("expected [audit p1] to prefix [audit p1 2]")
	}
	if !k.HasPrefix(Key{}) {
		t.Error("expected empty prefix to match")
	}
	if k.HasPrefix(Key{"audit", "p2"}) {
		t.Error("expected [audit p2] not to prefix [audit p1 2]")
	}
	if k.HasPrefix(Key{"audit", "p1", "2", "x"}) {
		t.Error("longer prefix must not match")
	}
	if (Key{"a b"}).id() == (Key{"a", "b"}).id() {
		t.Error("distinct keys must have distinct ids")
	}
	if k.String() != "[audit p1 2]" {
		t.Errorf("unexpected String(): %s", k.String())
	}
}

func TestGetOrFetchCaches(t *testing.T) {
	c := New()
	var calls atomic.Int32
	key := Key{"project", "p1"}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), key, counter("status", &calls))
		if err != nil {
			t.Fatalf("GetOrFetch failed: %v", err)
		}
		if v != "status" {
			t.Errorf("expected 'status', got %v", v)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}

	snap, ok := c.Peek(key)
	if !ok {
		t.Fatal("expected entry")
	}
	if snap.Status != StatusSuccess || snap.Version != 1 || snap.Stale {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestGetOrFetchDeduplicates(t *testing.T) {
	c := New()
	key := Key{"plan", "p1"}

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "plan-v1", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.GetOrFetch(context.Background(), key, fetch)
	}()
	waitFor(t, func() bool { return c.IsLoading(key) })

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrFetch(context.Background(), key, fetch)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected fetcher invoked once, got %d", calls.Load())
	}
	for i, r := range results {
		if r != "plan-v1" {
			t.Errorf("caller %d: expected 'plan-v1', got %v", i, r)
		}
	}
	if c.IsLoading(key) {
		t.Error("expected loading to clear")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	var calls atomic.Int32
	ctx := context.Background()

	_, _ = c.GetOrFetch(ctx, Key{"audit", "p1", "1"}, counter("page1", &calls))
	_, _ = c.GetOrFetch(ctx, Key{"audit", "p1", "2"}, counter("page2", &calls))
	_, _ = c.GetOrFetch(ctx, Key{"audit", "p2", "1"}, counter("other", &calls))
	_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("proj", &calls))

	if n := c.Invalidate(Key{"audit", "p1"}); n != 2 {
		t.Errorf("expected 2 entries invalidated, got %d", n)
	}

	snap, _ := c.Peek(Key{"audit", "p1", "1"})
	if !snap.Stale {
		t.Error("expected [audit p1 1] stale")
	}
	if snap.Value != "page1" {
		t.Errorf("stale entry should keep its value, got %v", snap.Value)
	}
	snap, _ = c.Peek(Key{"audit", "p2", "1"})
	if snap.Stale {
		t.Error("expected [audit p2 1] untouched")
	}

	before := calls.Load()
	_, _ = c.GetOrFetch(ctx, Key{"audit", "p1", "1"}, counter("page1-new", &calls))
	_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("proj-new", &calls))
	if got := calls.Load() - before; got != 1 {
		t.Errorf("expected exactly 1 refetch, got %d", got)
	}

	snap, _ = c.Peek(Key{"audit", "p1", "1"})
	if snap.Value != "page1-new" || snap.Stale || snap.Version != 2 {
		t.Errorf("unexpected snapshot after refetch %+v", snap)
	}
}

func TestErrorsAreCachedUntilInvalidated(t *testing.T) {
	c := New()
	key := Key{"requirements", "p1"}
	boom := errors.New("backend down")

	var calls atomic.Int32
	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrFetch(context.Background(), key, failing); !errors.Is(err, boom) {
			t.Fatalf("expected cached error, got %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected no automatic retry, got %d fetches", calls.Load())
	}

	snap, _ := c.Peek(key)
	if snap.Status != StatusError || !errors.Is(snap.Err, boom) {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	c.Invalidate(key)
	v, err := c.GetOrFetch(context.Background(), key, counter("recovered", &calls))
	if err != nil || v != "recovered" {
		t.Errorf("expected recovery after invalidation, got (%v, %v)", v, err)
	}
}

func TestInvalidateDuringFetchLeavesStale(t *testing.T) {
	c := New()
	key := Key{"project", "p1"}

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
			<-release
			return "old", nil
		})
	}()
	waitFor(t, func() bool { return c.IsLoading(key) })

	c.Invalidate(key)
	close(release)
	<-done

	snap, _ := c.Peek(key)
	if !snap.Stale {
		t.Error("expected result of a fetch that raced an invalidation to be stale")
	}

	var calls atomic.Int32
	v, _ := c.GetOrFetch(context.Background(), key, counter("new", &calls))
	if v != "new" || calls.Load() != 1 {
		t.Errorf("expected refetch to 'new', got %v after %d fetches", v, calls.Load())
	}
}

func TestInvalidateDuringFetchRenotifiesRetainedKey(t *testing.T) {
	c := New()
	key := Key{"requirements", "p1"}
	release := c.Retain(key)
	defer release()

	var calls atomic.Int32
	proceed := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			<-proceed
			return "before-mutation", nil
		}
		return "after-mutation", nil
	}

	// The view re-reads on every notification, the way the dashboard does.
	var mu sync.Mutex
	var seen []any
	var readers sync.WaitGroup
	cancel := c.Observe(func(k Key) {
		readers.Add(1)
		go func() {
			defer readers.Done()
			v, _ := c.GetOrFetch(context.Background(), k, fetcher)
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		}()
	})
	defer cancel()

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _ = c.GetOrFetch(context.Background(), key, fetcher)
	}()
	waitFor(t, func() bool { return c.IsLoading(key) })

	c.Invalidate(key)
	close(proceed)
	<-first
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(seen, any("after-mutation"))
	})
	readers.Wait()

	snap, _ := c.Peek(key)
	if snap.Stale || snap.Value != "after-mutation" {
		t.Errorf("expected fresh after-mutation entry, got %+v", snap)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestCallerCancellationDoesNotCancelSharedFetch(t *testing.T) {
	c := New()
	key := Key{"prompts", "p1"}

	release := make(chan struct{})
	var fetchCtxErr atomic.Value
	fetch := func(ctx context.Context) (any, error) {
		<-release
		if err := ctx.Err(); err != nil {
			fetchCtxErr.Store(err)
		}
		return "bundle", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, key, fetch)
		first <- err
	}()
	waitFor(t, func() bool { return c.IsLoading(key) })

	second := make(chan any, 1)
	go func() {
		v, _ := c.GetOrFetch(context.Background(), key, fetch)
		second <- v
	}()

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled caller to see context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(release)
	select {
	case v := <-second:
		if v != "bundle" {
			t.Errorf("expected remaining caller to get 'bundle', got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining caller did not return")
	}
	if err := fetchCtxErr.Load(); err != nil {
		t.Errorf("shared fetch saw canceled context: %v", err)
	}

	snap, _ := c.Peek(key)
	if snap.Value != "bundle" {
		t.Errorf("expected result cached, got %v", snap.Value)
	}
}

func TestMutate(t *testing.T) {
	ctx := context.Background()

	t.Run("success invalidates targets", func(t *testing.T) {
		c := New()
		var calls atomic.Int32
		_, _ = c.GetOrFetch(ctx, Key{"requirements", "p1"}, counter("v1", &calls))
		_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("state", &calls))

		out, err := Mutate(ctx, c, func(ctx context.Context) (string, error) {
			return "saved", nil
		}, Key{"requirements", "p1"})
		if err != nil || out != "saved" {
			t.Fatalf("unexpected mutate result (%v, %v)", out, err)
		}

		before := calls.Load()
		v, _ := c.GetOrFetch(ctx, Key{"requirements", "p1"}, counter("v2", &calls))
		if v != "v2" {
			t.Errorf("expected fresh read 'v2', got %v", v)
		}
		_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("state2", &calls))
		if got := calls.Load() - before; got != 1 {
			t.Errorf("expected only the targeted key refetched, got %d fetches", got)
		}
	})

	t.Run("failure leaves cache untouched", func(t *testing.T) {
		c := New()
		var calls atomic.Int32
		_, _ = c.GetOrFetch(ctx, Key{"plan", "p1"}, counter("plan-v1", &calls))

		boom := errors.New("409 conflict")
		_, err := Mutate(ctx, c, func(ctx context.Context) (int, error) {
			return 0, boom
		}, Key{"plan", "p1"})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutation error, got %v", err)
		}

		v, _ := c.GetOrFetch(ctx, Key{"plan", "p1"}, counter("plan-v2", &calls))
		if v != "plan-v1" {
			t.Errorf("expected last known good 'plan-v1', got %v", v)
		}
		if calls.Load() != 1 {
			t.Errorf("expected no refetch after failed mutation, got %d fetches", calls.Load())
		}
	})
}

func TestRetainAndObserve(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls atomic.Int32

	var (
		mu   sync.Mutex
		seen []Key
	)
	stop := c.Observe(func(k Key) {
		mu.Lock()
		seen = append(seen, k)
		mu.Unlock()
	})

	release := c.Retain(Key{"project", "p1"})
	_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("a", &calls))
	_, _ = c.GetOrFetch(ctx, Key{"plan", "p1"}, counter("b", &calls))

	c.Invalidate(Key{"project", "p1"})
	c.Invalidate(Key{"plan", "p1"}) // not retained: no observer call

	mu.Lock()
	if len(seen) != 1 || !seen[0].Equal(Key{"project", "p1"}) {
		t.Errorf("expected one observed key [project p1], got %v", seen)
	}
	mu.Unlock()

	snap, _ := c.Peek(Key{"project", "p1"})
	if snap.Refs != 1 {
		t.Errorf("expected 1 ref, got %d", snap.Refs)
	}

	release()
	release()
	snap, _ = c.Peek(Key{"project", "p1"})
	if snap.Refs != 0 {
		t.Errorf("expected 0 refs after release, got %d", snap.Refs)
	}

	c.Invalidate(Key{"project", "p1"})
	mu.Lock()
	if len(seen) != 1 {
		t.Errorf("released keys must not be observed, got %v", seen)
	}
	mu.Unlock()

	stop()
	r2 := c.Retain(Key{"project", "p1"})
	defer r2()
	c.Invalidate(Key{"project", "p1"})
	mu.Lock()
	if len(seen) != 1 {
		t.Errorf("stopped observer must not be called, got %v", seen)
	}
	mu.Unlock()
}

func TestIdleEntriesAreEvicted(t *testing.T) {
	c := New(WithIdleEntries(2))
	ctx := context.Background()
	var calls atomic.Int32

	keep := c.Retain(Key{"project", "p1"})
	defer keep()
	_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("pinned", &calls))

	_, _ = c.GetOrFetch(ctx, Key{"plan", "a"}, counter(1, &calls))
	_, _ = c.GetOrFetch(ctx, Key{"plan", "b"}, counter(2, &calls))
	_, _ = c.GetOrFetch(ctx, Key{"plan", "c"}, counter(3, &calls))

	if _, ok := c.Peek(Key{"plan", "a"}); ok {
		t.Error("expected least recently used idle entry to be evicted")
	}
	if _, ok := c.Peek(Key{"plan", "c"}); !ok {
		t.Error("expected newest idle entry kept")
	}
	if _, ok := c.Peek(Key{"project", "p1"}); !ok {
		t.Error("retained entries must never be evicted")
	}
	if n := len(c.Entries()); n != 3 {
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestRetainRevivesIdleEntry(t *testing.T) {
	c := New()
	var calls atomic.Int32
	_, _ = c.GetOrFetch(context.Background(), Key{"plan", "p1"}, counter("kept", &calls))

	release := c.Retain(Key{"plan", "p1"})
	defer release()

	v, _ := c.GetOrFetch(context.Background(), Key{"plan", "p1"}, counter("refetched", &calls))
	if v != "kept" || calls.Load() != 1 {
		t.Errorf("expected idle value reused, got %v after %d fetches", v, calls.Load())
	}
}

func TestFetchTyped(t *testing.T) {
	c := New()
	ctx := context.Background()

	type plan struct{ Version int }

	p, err := Fetch(ctx, c, Key{"plan", "p1"}, func(ctx context.Context) (*plan, error) {
		return &plan{Version: 3}, nil
	})
	if err != nil || p.Version != 3 {
		t.Fatalf("unexpected typed fetch (%v, %v)", p, err)
	}

	t.Run("typed nil is a cached absence", func(t *testing.T) {
		var calls atomic.Int32
		for i := 0; i < 2; i++ {
			got, err := Fetch(ctx, c, Key{"prompts", "p1"}, func(ctx context.Context) (*plan, error) {
				calls.Add(1)
				return nil, nil
			})
			if err != nil || got != nil {
				t.Errorf("expected (nil, nil), got (%v, %v)", got, err)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("expected absence cached, got %d fetches", calls.Load())
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		var calls atomic.Int32
		_, _ = c.GetOrFetch(ctx, Key{"project", "p1"}, counter("a string", &calls))
		_, err := Fetch(ctx, c, Key{"project", "p1"}, func(ctx context.Context) (int, error) {
			return 1, nil
		})
		if err == nil {
			t.Error("expected type mismatch error")
		}
	})
}

func TestFetchTimeout(t *testing.T) {
	c := New(WithFetchTimeout(20 * time.Millisecond))

	_, err := c.GetOrFetch(context.Background(), Key{"slow"}, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEntriesAndClear(t *testing.T) {
	c := New()
	var calls atomic.Int32
	_, _ = c.GetOrFetch(context.Background(), Key{"plan", "p1"}, counter(1, &calls))
	_, _ = c.GetOrFetch(context.Background(), Key{"audit", "p1", "1"}, counter(2, &calls))

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Key.Equal(Key{"audit", "p1", "1"}) {
		t.Errorf("expected entries ordered by key, got %v first", entries[0].Key)
	}

	c.Clear()
	if n := len(c.Entries()); n != 0 {
		t.Errorf("expected empty cache after Clear, got %d", n)
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusIdle:    "idle",
		StatusLoading: "loading",
		StatusError:   "error",
		StatusSuccess: "success",
		Status(9):     "status(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
