package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadThroughLoadsOnceAndInvalidates(t *testing.T) {
	rt := NewReadThrough[[]string](NewLRUCache[[]string](10, time.Minute))
	ctx := context.Background()
	var loads int32
	load := func(context.Context) ([]string, error) {
		atomic.AddInt32(&loads, 1)
		return []string{"Tuition"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := rt.Get(ctx, "org1", "services", load)
		if err != nil || len(v) != 1 {
			t.Fatalf("unexpected result %v %v", v, err)
		}
	}
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}

	rt.Invalidate("org2")
	if _, err := rt.Get(ctx, "org1", "services", load); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("invalidating another scope must not reload, got %d loads", loads)
	}

	rt.Invalidate("org1")
	if _, err := rt.Get(ctx, "org1", "services", load); err != nil {
		t.Fatal(err)
	}
	if loads != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", loads)
	}
}

func TestReadThroughDoesNotCacheErrors(t *testing.T) {
	rt := NewReadThrough[int](NewLRUCache[int](10, time.Minute))
	boom := errors.New("boom")
	if _, err := rt.Get(context.Background(), "org1", "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	v, err := rt.Get(context.Background(), "org1", "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected fresh load, got %v %v", v, err)
	}
}

func TestReadThroughSharesConcurrentLoads(t *testing.T) {
	rt := NewReadThrough[int](NewLRUCache[int](10, time.Minute))
	release := make(chan struct{})
	var loads int32
	load := func(context.Context) (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = rt.Get(context.Background(), "org1", "k", load)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if loads != 1 {
		t.Fatalf("expected one shared load, got %d", loads)
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("caller %d got %d", i, v)
		}
	}
}

func TestReadThroughDropsLoadRacingInvalidate(t *testing.T) {
	rt := NewReadThrough[int](NewLRUCache[int](10, time.Minute))
	ctx := context.Background()

	v, err := rt.Get(ctx, "org1", "k", func(context.Context) (int, error) {
		rt.Invalidate("org1") // a writer commits while the load runs
		return 1, nil
	})
	if err != nil || v != 1 {
		t.Fatalf("unexpected %v %v", v, err)
	}
	v, _ = rt.Get(ctx, "org1", "k", func(context.Context) (int, error) { return 2, nil })
	if v != 2 {
		t.Fatalf("stale value was cached, got %d", v)
	}
}
