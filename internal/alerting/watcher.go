package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invest-calendar/internal/pipeline"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream/kis"
)

// Watcher checks freshly collected prices against watchlist targets and
// notifies at most once per cooldown per watch entry.
type Watcher struct {
	watchlist storage.WatchlistStore
	notifier  Notifier
	cooldown  time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	lastSent map[int64]time.Time
}

// NewWatcher wires the watchlist store and a notifier.
func NewWatcher(watchlist storage.WatchlistStore, notifier Notifier, cooldown time.Duration, logger zerolog.Logger) *Watcher {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Watcher{
		watchlist: watchlist,
		notifier:  notifier,
		cooldown:  cooldown,
		logger:    logger.With().Str("component", "alert_watcher").Logger(),
		lastSent:  make(map[int64]time.Time),
	}
}

// OnResponse inspects pipeline output for stock prices. Intended to be
// registered as the pipeline's response hook.
func (w *Watcher) OnResponse(resp pipeline.Response) {
	if resp.Err != nil || resp.Request.Type != pipeline.TypeStockPrice {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch data := resp.Data.(type) {
	case kis.Quote:
		w.check(ctx, data)
	case map[string]kis.Quote:
		for _, quote := range data {
			w.check(ctx, quote)
		}
	}
}

func (w *Watcher) check(ctx context.Context, quote kis.Quote) {
	if quote.CurrentPrice.IsZero() {
		return
	}

	watchers, err := w.watchlist.ListWatchersByCode(ctx, quote.StockCode)
	if err != nil {
		w.logger.Error().Err(err).Str("code", quote.StockCode).Msg("failed to load watchers")
		return
	}

	for _, item := range watchers {
		if item.TargetPrice == nil || !crossed(quote.CurrentPrice, *item.TargetPrice) {
			continue
		}
		if !w.takeSlot(item.ID) {
			continue
		}

		note := Notification{
			StockCode:   quote.StockCode,
			StockName:   quote.StockName,
			Price:       quote.CurrentPrice,
			TargetPrice: *item.TargetPrice,
			At:          time.Now(),
		}
		if err := w.notifier.Notify(ctx, note); err != nil {
			w.logger.Error().Err(err).Str("code", quote.StockCode).Msg("failed to send alert")
			w.releaseSlot(item.ID)
		}
	}
}

// crossed reports whether the price reached the target.
func crossed(price, target decimal.Decimal) bool {
	return price.GreaterThanOrEqual(target)
}

// takeSlot records a send unless one happened within the cooldown.
func (w *Watcher) takeSlot(watchID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.lastSent[watchID]; ok && time.Since(last) < w.cooldown {
		return false
	}
	w.lastSent[watchID] = time.Now()
	return true
}

func (w *Watcher) releaseSlot(watchID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.lastSent, watchID)
}
