// Package collector binds the upstream clients into the pipeline: fetchers
// dispatch queued requests to the right provider call, sinks persist what
// comes back, and the request builders decide what gets collected when.
package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invest-calendar/internal/pipeline"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
	"invest-calendar/internal/upstream/perplexity"
	"invest-calendar/internal/upstream/upbit"
)

// KISFetcher serves stock, index and history requests.
type KISFetcher struct {
	client *kis.Client
}

// NewKISFetcher wraps a KIS client.
func NewKISFetcher(client *kis.Client) *KISFetcher {
	return &KISFetcher{client: client}
}

var _ pipeline.Fetcher = (*KISFetcher)(nil)

func (f *KISFetcher) Fetch(ctx context.Context, req pipeline.Request) (any, error) {
	switch req.Type {
	case pipeline.TypeStockPrice:
		if codes := req.Param("codes"); codes != "" {
			return f.client.StockPrices(ctx, strings.Split(codes, ","))
		}
		return f.client.StockPrice(ctx, req.Param("code"))
	case pipeline.TypeStockHistory:
		from, to, err := historyWindow(req)
		if err != nil {
			return nil, err
		}
		period := req.Param("period")
		if period == "" {
			period = "D"
		}
		return f.client.StockHistory(ctx, req.Param("code"), from, to, period)
	case pipeline.TypeMarketIndex:
		if code := req.Param("code"); code != "" {
			return f.client.MarketIndex(ctx, code)
		}
		return f.client.MarketIndices(ctx)
	default:
		return nil, fmt.Errorf("kis fetcher cannot serve type %q", req.Type)
	}
}

func historyWindow(req pipeline.Request) (time.Time, time.Time, error) {
	to := time.Now()
	if v := req.Param("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad to date %q: %w", v, err)
		}
		to = parsed
	}

	from := to.AddDate(0, -3, 0)
	if v := req.Param("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad from date %q: %w", v, err)
		}
		from = parsed
	}
	return from, to, nil
}

// DARTFetcher serves disclosure requests.
type DARTFetcher struct {
	client *dart.Client
}

// NewDARTFetcher wraps a DART client.
func NewDARTFetcher(client *dart.Client) *DARTFetcher {
	return &DARTFetcher{client: client}
}

var _ pipeline.Fetcher = (*DARTFetcher)(nil)

func (f *DARTFetcher) Fetch(ctx context.Context, req pipeline.Request) (any, error) {
	if req.Type != pipeline.TypeDisclosure {
		return nil, fmt.Errorf("dart fetcher cannot serve type %q", req.Type)
	}

	days := 1
	if v := req.Param("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("bad days parameter %q", v)
		}
		days = parsed
	}
	importantOnly := req.Param("important_only") == "true"
	return f.client.RecentDisclosures(ctx, req.Param("corp_class"), days, importantOnly)
}

// PerplexityFetcher serves AI market commentary requests.
type PerplexityFetcher struct {
	client *perplexity.Client
}

// NewPerplexityFetcher wraps a Perplexity client.
func NewPerplexityFetcher(client *perplexity.Client) *PerplexityFetcher {
	return &PerplexityFetcher{client: client}
}

var _ pipeline.Fetcher = (*PerplexityFetcher)(nil)

func (f *PerplexityFetcher) Fetch(ctx context.Context, req pipeline.Request) (any, error) {
	if req.Type != pipeline.TypeNews {
		return nil, fmt.Errorf("perplexity fetcher cannot serve type %q", req.Type)
	}
	if term := req.Param("term"); term != "" {
		return f.client.ExplainTerm(ctx, term, req.Param("context")), nil
	}
	return f.client.DailyMarketSummary(ctx), nil
}

// UpbitFetcher serves crypto ticker requests.
type UpbitFetcher struct {
	client *upbit.Client
}

// NewUpbitFetcher wraps an Upbit client.
func NewUpbitFetcher(client *upbit.Client) *UpbitFetcher {
	return &UpbitFetcher{client: client}
}

var _ pipeline.Fetcher = (*UpbitFetcher)(nil)

func (f *UpbitFetcher) Fetch(ctx context.Context, req pipeline.Request) (any, error) {
	if req.Type != pipeline.TypeCrypto {
		return nil, fmt.Errorf("upbit fetcher cannot serve type %q", req.Type)
	}
	symbol := req.Param("symbol")
	if symbol == "" {
		return nil, fmt.Errorf("crypto request missing symbol")
	}
	return f.client.Ticker(ctx, symbol)
}
