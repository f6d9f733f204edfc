package upstream

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy re-invokes an upstream call on transient failures with
// exponential backoff. Non-transient errors propagate immediately.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    float64
}

// DefaultRetry mirrors the provider clients' standard policy.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second, Backoff: 2}
}

// Do invokes fn up to MaxRetries times. The delay before attempt i is
// Delay * Backoff^(i-1). The last transient error is returned once attempts
// are exhausted.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 2
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		last = err

		if attempt == attempts-1 {
			break
		}

		wait := time.Duration(float64(p.Delay) * math.Pow(backoff, float64(attempt)))
		logger.Warn().
			Err(err).
			Str("op", op).
			Int("remaining", attempts-attempt-1).
			Dur("wait", wait).
			Msg("transient upstream failure, retrying")

		if serr := sleepContext(ctx, wait); serr != nil {
			return serr
		}
	}

	logger.Error().Err(last).Str("op", op).Int("attempts", attempts).Msg("upstream call failed after retries")
	return last
}
