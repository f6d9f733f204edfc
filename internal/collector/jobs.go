package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/pipeline"
	"invest-calendar/internal/scheduler"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
)

// EventSyncJob refreshes the calendar: upcoming market holidays from KIS
// and earnings events derived from recent periodic filings on DART.
type EventSyncJob struct {
	kis          *kis.Client
	dart         *dart.Client
	events       storage.EventStore
	lookbackDays int
	logger       zerolog.Logger
}

// NewEventSyncJob wires the sync job.
func NewEventSyncJob(kisClient *kis.Client, dartClient *dart.Client, events storage.EventStore, lookbackDays int, logger zerolog.Logger) *EventSyncJob {
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	return &EventSyncJob{
		kis:          kisClient,
		dart:         dartClient,
		events:       events,
		lookbackDays: lookbackDays,
		logger:       logger.With().Str("component", "event_sync").Logger(),
	}
}

var _ scheduler.Job = (*EventSyncJob)(nil)

func (j *EventSyncJob) Name() string { return "event-sync" }

// Run performs both syncs. A failure on one source does not abort the
// other; the first error is reported after both ran.
func (j *EventSyncJob) Run(ctx context.Context) error {
	var firstErr error

	if err := j.syncHolidays(ctx); err != nil {
		j.logger.Error().Err(err).Msg("holiday sync failed")
		firstErr = err
	}
	if err := j.syncEarnings(ctx); err != nil {
		j.logger.Error().Err(err).Msg("earnings sync failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (j *EventSyncJob) syncHolidays(ctx context.Context) error {
	holidays, err := j.kis.Holidays(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("fetch holidays: %w", err)
	}

	inserted := 0
	for _, day := range holidays {
		wrote, insertErr := j.events.InsertEventIfAbsent(ctx, storage.CalendarEvent{
			Type:      storage.EventHoliday,
			Title:     "휴장일",
			EventDate: day,
			Source:    "kis",
		})
		if insertErr != nil {
			return insertErr
		}
		if wrote {
			inserted++
		}
	}
	j.logger.Info().Int("fetched", len(holidays)).Int("inserted", inserted).Msg("holidays synced")
	return nil
}

func (j *EventSyncJob) syncEarnings(ctx context.Context) error {
	disclosures, err := j.dart.RecentDisclosures(ctx, "", j.lookbackDays, true)
	if err != nil {
		return fmt.Errorf("fetch disclosures: %w", err)
	}

	inserted := 0
	for _, d := range disclosures {
		event, mapErr := DisclosureEvent(d)
		if mapErr != nil {
			j.logger.Warn().Err(mapErr).Str("receipt_no", d.ReceiptNo).Msg("skipping malformed disclosure")
			continue
		}
		wrote, insertErr := j.events.InsertEventIfAbsent(ctx, event)
		if insertErr != nil {
			return insertErr
		}
		if wrote {
			inserted++
		}
	}
	j.logger.Info().Int("fetched", len(disclosures)).Int("inserted", inserted).Msg("earnings events synced")
	return nil
}

// PriceRefreshJob enqueues a price collection round for every watched
// stock. Runs around market open and close.
type PriceRefreshJob struct {
	stocks storage.StockStore
	pipe   *pipeline.Pipeline
	logger zerolog.Logger
}

// NewPriceRefreshJob wires the refresh job.
func NewPriceRefreshJob(stocks storage.StockStore, pipe *pipeline.Pipeline, logger zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		stocks: stocks,
		pipe:   pipe,
		logger: logger.With().Str("component", "price_refresh").Logger(),
	}
}

var _ scheduler.Job = (*PriceRefreshJob)(nil)

func (j *PriceRefreshJob) Name() string { return "price-refresh" }

func (j *PriceRefreshJob) Run(ctx context.Context) error {
	codes, err := j.stocks.DistinctWatchedCodes(ctx)
	if err != nil {
		return fmt.Errorf("list watched codes: %w", err)
	}
	if len(codes) == 0 {
		j.logger.Debug().Msg("no watched stocks to refresh")
		return nil
	}

	reqs := PriceRequests(codes)
	j.pipe.EnqueueBatch(reqs)
	j.logger.Info().Int("stocks", len(codes)).Int("requests", len(reqs)).Msg("price refresh enqueued")
	return nil
}

// SessionPruneJob drops expired login sessions.
type SessionPruneJob struct {
	prune func(ctx context.Context) error
}

// NewSessionPruneJob wraps the auth service's prune call.
func NewSessionPruneJob(prune func(ctx context.Context) error) *SessionPruneJob {
	return &SessionPruneJob{prune: prune}
}

var _ scheduler.Job = (*SessionPruneJob)(nil)

func (j *SessionPruneJob) Name() string { return "session-prune" }

func (j *SessionPruneJob) Run(ctx context.Context) error { return j.prune(ctx) }
