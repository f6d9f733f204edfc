package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, Backoff: 2}

	calls := 0
	err := policy.Do(context.Background(), zerolog.Nop(), "op", func(context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("flaky: %w", ErrTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryExhaustsTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, Backoff: 2}

	calls := 0
	transient := fmt.Errorf("still down: %w", ErrTransient)
	err := policy.Do(context.Background(), zerolog.Nop(), "op", func(context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected the last transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, Backoff: 2}

	calls := 0
	permanent := errors.New("bad request")
	err := policy.Do(context.Background(), zerolog.Nop(), "op", func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", calls)
	}
}

func TestRetryHonoursContextDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, Delay: time.Second, Backoff: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := policy.Do(ctx, zerolog.Nop(), "op", func(context.Context) error {
		calls++
		return fmt.Errorf("down: %w", ErrTransient)
	})
	if err == nil {
		t.Fatal("expected a context error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before the deadline, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("backoff should abort on cancellation, took %v", elapsed)
	}
}

func TestAPIErrorTransience(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tc := range cases {
		err := &APIError{Provider: "kis", Status: tc.status}
		if got := IsTransient(err); got != tc.transient {
			t.Errorf("status %d: IsTransient=%v, want %v", tc.status, got, tc.transient)
		}
	}
}

func TestIsTransientContextErrors(t *testing.T) {
	if IsTransient(context.Canceled) {
		t.Fatal("cancellation must not be treated as transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("timeouts should be transient")
	}
	if IsTransient(&DecodeError{Provider: "dart", Err: errors.New("bad json")}) {
		t.Fatal("decode failures must not be retried")
	}
}
