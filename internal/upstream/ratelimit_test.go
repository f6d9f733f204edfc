package upstream

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllowsBurstWithinWindow(t *testing.T) {
	limiter := NewLimiter(5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("burst within the limit should not block, took %v", elapsed)
	}
}

func TestLimiterBlocksBeyondWindow(t *testing.T) {
	limiter := NewLimiter(3)

	start := time.Now()
	for i := 0; i < 7; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Calls 4 and 7 each wait out roughly one window.
	if elapsed < 1800*time.Millisecond {
		t.Fatalf("7 calls at 3/s should take at least ~2 windows, took %v", elapsed)
	}
	if elapsed > 4*time.Second {
		t.Fatalf("limiter waited far too long: %v", elapsed)
	}
}

func TestLimiterAcquireCancelled(t *testing.T) {
	limiter := NewLimiter(1)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("acquire should fail when the context expires during the wait")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("cancelled acquire should return promptly, took %v", elapsed)
	}
}
