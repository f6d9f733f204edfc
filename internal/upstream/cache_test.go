package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheHitWithinTTL(t *testing.T) {
	cache := NewCache(time.Minute, 16)

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.Do(context.Background(), "k", fetch)
		if err != nil {
			t.Fatalf("do %d: %v", i, err)
		}
		if got != "value" {
			t.Fatalf("do %d: got %v", i, got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestCacheDistinctKeys(t *testing.T) {
	cache := NewCache(time.Minute, 16)

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	if _, err := cache.Do(context.Background(), Key("price", "005930"), fetch); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Do(context.Background(), Key("price", "000660"), fetch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("distinct keys must fetch separately, got %d calls", calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(20*time.Millisecond, 16)

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	if _, err := cache.Do(context.Background(), "k", fetch); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	got, err := cache.Do(context.Background(), "k", fetch)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 || calls != 2 {
		t.Fatalf("expired entry should refetch: got=%v calls=%d", got, calls)
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewCache(time.Minute, 16)

	calls := 0
	boom := errors.New("boom")
	fetch := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := cache.Do(context.Background(), "k", fetch); !errors.Is(err, boom) {
		t.Fatalf("first call should fail: %v", err)
	}
	got, err := cache.Do(context.Background(), "k", fetch)
	if err != nil || got != "ok" {
		t.Fatalf("second call should retry the fetch: got=%v err=%v", got, err)
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	cache := NewCache(time.Minute, 16)

	var fetches atomic.Int64
	release := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		fetches.Add(1)
		<-release
		return "shared", nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]any, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := cache.Do(context.Background(), "k", fetch)
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			results[i] = got
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Fatalf("concurrent misses should share one fetch, got %d", n)
	}
	for i, got := range results {
		if got != "shared" {
			t.Fatalf("waiter %d got %v", i, got)
		}
	}
}

func TestCacheBoundsEntries(t *testing.T) {
	cache := NewCache(time.Minute, 4)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := cache.Do(context.Background(), key, func(context.Context) (any, error) {
			return i, nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	if n := cache.Len(); n > 4 {
		t.Fatalf("cache should stay within its bound, has %d entries", n)
	}
}

func TestKeyFormat(t *testing.T) {
	if got := Key("stock_price", "005930"); got != "stock_price:005930" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key("history", "005930", "D", 30); got != "history:005930:D:30" {
		t.Fatalf("unexpected key %q", got)
	}
}
