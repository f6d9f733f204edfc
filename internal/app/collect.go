package app

import (
	"context"
	"errors"
	"time"

	"invest-calendar/internal/collector"
)

// CollectOptions configure a one-shot collection round.
type CollectOptions struct {
	// Codes overrides the watchlist-derived stock set.
	Codes   []string
	Timeout time.Duration
}

// Collect runs a single collection round to completion and exits.
func (a *App) Collect(ctx context.Context, opts CollectOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cl := a.newClients()
	pipe := a.newPipeline(cl, store, nil)

	codes := opts.Codes
	if len(codes) == 0 {
		codes, err = store.DistinctWatchedCodes(ctx)
		if err != nil {
			return err
		}
	}

	reqs := collector.BuildScheduledRequests(codes)
	a.Logger.Info().Int("requests", len(reqs)).Int("stocks", len(codes)).Msg("starting one-shot collection")

	pipe.EnqueueBatch(reqs)
	pipe.Start(ctx)
	defer pipe.Stop()

	for !pipe.Quiesced() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.New("collection timed out")
			}
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	a.Logger.Info().Msg("collection round completed")
	return nil
}
