package upstream

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles calls so that no trailing one-second window contains more
// than the configured number of acquisitions. All workers issuing calls
// through the same client share one instance, so the read-modify-write of the
// timestamp list is serialised under a mutex.
type Limiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time
}

// NewLimiter constructs a limiter allowing callsPerSecond acquisitions per
// trailing second.
func NewLimiter(callsPerSecond int) *Limiter {
	if callsPerSecond < 1 {
		callsPerSecond = 1
	}
	return &Limiter{max: callsPerSecond, window: time.Second}
}

// Acquire blocks until issuing one more call would not exceed the window cap,
// then records the call. Returns early with the context error on cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if len(l.calls) >= l.max {
		wait := l.window - now.Sub(l.calls[0])
		if wait > 0 {
			if err := sleepContext(ctx, wait); err != nil {
				return err
			}
		}
		l.calls = l.calls[:0]
	}

	l.calls = append(l.calls, time.Now())
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
