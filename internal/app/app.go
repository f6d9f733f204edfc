// Package app wires configuration, storage, upstream clients, the
// collection pipeline and the HTTP server into runnable commands.
package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/alerting"
	"invest-calendar/internal/auth"
	"invest-calendar/internal/collector"
	"invest-calendar/internal/config"
	"invest-calendar/internal/pipeline"
	"invest-calendar/internal/scheduler"
	"invest-calendar/internal/server"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
	"invest-calendar/internal/upstream/perplexity"
	"invest-calendar/internal/upstream/upbit"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

type clients struct {
	kis        *kis.Client
	dart       *dart.Client
	perplexity *perplexity.Client
	upbit      *upbit.Client
}

func (a *App) newClients() clients {
	return clients{
		kis: kis.NewClient(kis.Options{
			BaseURL:   a.Config.KIS.BaseURL,
			AppKey:    a.Config.KIS.AppKey,
			AppSecret: a.Config.KIS.AppSecret,
			RateLimit: a.Config.KIS.RateLimit,
			Timeout:   a.Config.KIS.RequestTimeout,
			CacheTTL:  a.Config.KIS.CacheTTL,
		}, a.Logger),
		dart: dart.NewClient(dart.Options{
			BaseURL:   a.Config.DART.BaseURL,
			APIKey:    a.Config.DART.APIKey,
			RateLimit: a.Config.DART.RateLimit,
			Timeout:   a.Config.DART.RequestTimeout,
		}, a.Logger),
		perplexity: perplexity.NewClient(perplexity.Options{
			BaseURL:   a.Config.Perplexity.BaseURL,
			APIKey:    a.Config.Perplexity.APIKey,
			Model:     a.Config.Perplexity.Model,
			RateLimit: a.Config.Perplexity.RateLimit,
			Timeout:   a.Config.Perplexity.RequestTimeout,
		}, a.Logger),
		upbit: upbit.NewClient(upbit.Options{
			BaseURL:   a.Config.Upbit.BaseURL,
			RateLimit: a.Config.Upbit.RateLimit,
			Timeout:   a.Config.Upbit.RequestTimeout,
		}, a.Logger),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newPipeline(cl clients, store *storage.Store, onResponse func(pipeline.Response)) *pipeline.Pipeline {
	pipe := pipeline.New(pipeline.Options{
		Workers:      a.Config.Pipeline.Workers,
		PollInterval: a.Config.Pipeline.PollInterval,
		OnResponse:   onResponse,
	}, a.Logger)

	pipe.RegisterFetcher(pipeline.SourceKIS, collector.NewKISFetcher(cl.kis))
	pipe.RegisterFetcher(pipeline.SourceDART, collector.NewDARTFetcher(cl.dart))
	pipe.RegisterFetcher(pipeline.SourcePerplexity, collector.NewPerplexityFetcher(cl.perplexity))
	pipe.RegisterFetcher(pipeline.SourceUpbit, collector.NewUpbitFetcher(cl.upbit))

	pipe.RegisterSink(pipeline.TypeStockPrice, collector.NewPriceSink(store, a.Logger))
	pipe.RegisterSink(pipeline.TypeDisclosure, collector.NewDisclosureSink(store, a.Logger))

	return pipe
}

// Run executes the long-running service: HTTP API, cron jobs and the
// continuous collection loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cl := a.newClients()

	var onResponse func(pipeline.Response)
	if notifier := a.newNotifier(); notifier != nil {
		watcher := alerting.NewWatcher(store, notifier, a.Config.Alerting.Cooldown, a.Logger)
		onResponse = watcher.OnResponse
	}

	pipe := a.newPipeline(cl, store, onResponse)
	pipe.Start(ctx)
	defer pipe.Stop()

	authService := auth.NewService(store, auth.Options{SessionTTL: a.Config.Auth.SessionTTL}, a.Logger)
	syncJob := collector.NewEventSyncJob(cl.kis, cl.dart, store, 7, a.Logger)

	cronJobs := scheduler.NewCron(a.Config.Location(), a.Config.Scheduler.JobTimeout, a.Logger)
	if err := a.registerCronJobs(cronJobs, store, pipe, authService, syncJob); err != nil {
		return err
	}
	cronJobs.Start()
	defer cronJobs.Stop()

	srv := server.New(server.Options{
		Config: a.Config.Server,
		Auth:   authService,
		Stores: server.Stores{
			Events:    store,
			Stocks:    store,
			Bookmarks: store,
			Watchlist: store,
		},
		Market:     cl.kis,
		Disclosure: cl.dart,
		Explainer:  cl.perplexity,
		Crypto:     cl.upbit,
		SyncJob:    syncJob,
	}, a.Logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	loop := scheduler.NewLoop(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		RetryInterval: a.Config.Scheduler.RetryInterval,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx, a.collectTick(store, pipe))
	}()

	a.Logger.Info().Msg("service started")

	select {
	case err = <-serverErr:
		cancel()
	case err = <-loopErr:
	case <-ctx.Done():
		err = ctx.Err()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.Error().Err(shutdownErr).Msg("server shutdown failed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}

func (a *App) registerCronJobs(cronJobs *scheduler.Cron, store *storage.Store, pipe *pipeline.Pipeline, authService *auth.Service, syncJob *collector.EventSyncJob) error {
	cfg := a.Config.Scheduler

	if err := cronJobs.AddJob(cfg.EventSyncSpec, syncJob); err != nil {
		return err
	}

	refresh := collector.NewPriceRefreshJob(store, pipe, a.Logger)
	if err := cronJobs.AddJob(cfg.MorningSpec, refresh); err != nil {
		return err
	}
	if err := cronJobs.AddJob(cfg.AfterCloseSpec, refresh); err != nil {
		return err
	}

	prune := collector.NewSessionPruneJob(authService.PruneSessions)
	return cronJobs.AddJob(cfg.SessionPruneSpec, prune)
}

// collectTick enqueues one full collection round and waits for the queue to
// drain before returning, so overlapping rounds never pile up.
func (a *App) collectTick(store *storage.Store, pipe *pipeline.Pipeline) scheduler.TickFunc {
	return func(ctx context.Context) error {
		codes, err := store.DistinctWatchedCodes(ctx)
		if err != nil {
			return err
		}

		pipe.EnqueueBatch(collector.BuildScheduledRequests(codes))

		for !pipe.Quiesced() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		return nil
	}
}
