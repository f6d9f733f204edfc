package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/pipeline"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
)

// PriceSink persists stock price responses into the stocks table.
type PriceSink struct {
	store  storage.StockStore
	logger zerolog.Logger
}

// NewPriceSink wires a stock store into a sink.
func NewPriceSink(store storage.StockStore, logger zerolog.Logger) *PriceSink {
	return &PriceSink{
		store:  store,
		logger: logger.With().Str("component", "price_sink").Logger(),
	}
}

var _ pipeline.Sink = (*PriceSink)(nil)

// Store handles both single quotes and batch results. A failed row in a
// batch is logged and skipped so one bad code cannot block the rest.
func (s *PriceSink) Store(ctx context.Context, resp pipeline.Response) error {
	switch data := resp.Data.(type) {
	case kis.Quote:
		return s.upsert(ctx, data)
	case map[string]kis.Quote:
		for code, quote := range data {
			if err := s.upsert(ctx, quote); err != nil {
				s.logger.Error().Err(err).Str("code", code).Msg("failed to store quote")
			}
		}
		return nil
	default:
		return fmt.Errorf("price sink cannot store %T", resp.Data)
	}
}

func (s *PriceSink) upsert(ctx context.Context, quote kis.Quote) error {
	return s.store.UpsertStock(ctx, storage.Stock{
		Code:       quote.StockCode,
		Name:       quote.StockName,
		Price:      quote.CurrentPrice,
		Change:     quote.ChangePrice,
		ChangeRate: quote.ChangeRate,
		Volume:     quote.Volume,
	})
}

// DisclosureSink turns disclosure responses into calendar events, skipping
// ones already recorded.
type DisclosureSink struct {
	store  storage.EventStore
	logger zerolog.Logger
}

// NewDisclosureSink wires an event store into a sink.
func NewDisclosureSink(store storage.EventStore, logger zerolog.Logger) *DisclosureSink {
	return &DisclosureSink{
		store:  store,
		logger: logger.With().Str("component", "disclosure_sink").Logger(),
	}
}

var _ pipeline.Sink = (*DisclosureSink)(nil)

func (s *DisclosureSink) Store(ctx context.Context, resp pipeline.Response) error {
	disclosures, ok := resp.Data.([]dart.Disclosure)
	if !ok {
		return fmt.Errorf("disclosure sink cannot store %T", resp.Data)
	}

	inserted := 0
	for _, d := range disclosures {
		event, err := DisclosureEvent(d)
		if err != nil {
			s.logger.Warn().Err(err).Str("receipt_no", d.ReceiptNo).Msg("skipping malformed disclosure")
			continue
		}
		wrote, err := s.store.InsertEventIfAbsent(ctx, event)
		if err != nil {
			return err
		}
		if wrote {
			inserted++
		}
	}
	if inserted > 0 {
		s.logger.Info().Int("inserted", inserted).Msg("recorded disclosure events")
	}
	return nil
}

// DisclosureEvent maps one filing to a calendar event. Periodic reports
// become earnings events; everything else is a plain disclosure.
func DisclosureEvent(d dart.Disclosure) (storage.CalendarEvent, error) {
	date, err := time.Parse("2006-01-02", d.ReceiptDate)
	if err != nil {
		return storage.CalendarEvent{}, fmt.Errorf("bad receipt date %q: %w", d.ReceiptDate, err)
	}

	eventType := storage.EventDisclosure
	if isPeriodicReport(d.ReportName) {
		eventType = storage.EventEarnings
	}

	return storage.CalendarEvent{
		Type:      eventType,
		Title:     fmt.Sprintf("%s: %s", d.CorpName, d.ReportName),
		StockCode: d.StockCode,
		StockName: d.CorpName,
		EventDate: date,
		Source:    "dart",
	}, nil
}

var periodicReportMarkers = []string{"사업보고서", "반기보고서", "분기보고서"}

func isPeriodicReport(reportName string) bool {
	for _, marker := range periodicReportMarkers {
		if strings.Contains(reportName, marker) {
			return true
		}
	}
	return false
}
