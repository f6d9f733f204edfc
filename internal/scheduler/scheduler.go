// Package scheduler drives the background collection work: an interval
// loop for the continuous collection round and a cron registry for the
// fixed daily jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every collection interval.
type TickFunc func(ctx context.Context) error

// Options tune the interval loop.
type Options struct {
	// Interval separates successful ticks.
	Interval time.Duration
	// RetryInterval separates a failed tick from the next attempt. Zero
	// means use Interval.
	RetryInterval time.Duration
	StartupDelay  time.Duration
}

// Loop re-runs a tick function forever, backing off to a shorter interval
// after failures so a transient upstream outage recovers quickly.
type Loop struct {
	opts   Options
	logger zerolog.Logger
}

// NewLoop constructs an interval loop.
func NewLoop(opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = opts.Interval
	}
	return &Loop{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tick TickFunc) error {
	if l.opts.StartupDelay > 0 {
		if err := sleepContext(ctx, l.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		started := time.Now()
		l.logger.Info().Msg("executing collection tick")

		wait := l.opts.Interval
		if err := tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("collection tick failed")
			wait = l.opts.RetryInterval
		} else {
			l.logger.Debug().Dur("elapsed", time.Since(started)).Msg("collection tick completed")
		}

		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
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
