// Package upbit reads spot crypto tickers from the Upbit public API.
package upbit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invest-calendar/internal/upstream"
)

const tickerEndpoint = "/v1/ticker"

// Ticker is the canonical crypto spot quote: last trade price plus the
// signed change against the previous close.
type Ticker struct {
	Symbol      string          `json:"symbol"`
	Market      string          `json:"market"`
	TradePrice  decimal.Decimal `json:"trade_price"`
	ChangePrice decimal.Decimal `json:"change_price"`
	ChangeRate  decimal.Decimal `json:"change_rate"`
	TradedAt    time.Time       `json:"traded_at"`
}

// Options parameterise the Upbit client.
type Options struct {
	BaseURL   string
	RateLimit int
	Timeout   time.Duration
}

type provider struct {
	baseURL string
}

func (p *provider) Name() string    { return "upbit" }
func (p *provider) BaseURL() string { return p.baseURL }
func (p *provider) Headers(context.Context, *upstream.Request) (http.Header, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	return h, nil
}

// Client is the Upbit ticker client. The ticker endpoint is public, so no
// credentials are involved.
type Client struct {
	api    *upstream.Client
	logger zerolog.Logger
}

// NewClient constructs an Upbit client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.upbit.com"
	}

	return &Client{
		api: upstream.NewClient(&provider{baseURL: baseURL}, upstream.Options{
			RateLimit: opts.RateLimit,
			Timeout:   opts.Timeout,
		}, logger),
		logger: logger.With().Str("component", "upbit_client").Logger(),
	}
}

// Ticker returns the KRW-market spot quote for a symbol such as BTC or ETH.
func (c *Client) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Ticker{}, fmt.Errorf("upbit: symbol required")
	}
	market := "KRW-" + symbol

	query := url.Values{}
	query.Set("markets", market)

	var rows []struct {
		Market            string  `json:"market"`
		TradePrice        float64 `json:"trade_price"`
		SignedChangePrice float64 `json:"signed_change_price"`
		SignedChangeRate  float64 `json:"signed_change_rate"`
		TradeTimestampMs  int64   `json:"trade_timestamp"`
	}
	if err := c.api.Get(ctx, tickerEndpoint, query, &rows); err != nil {
		return Ticker{}, err
	}
	if len(rows) == 0 {
		return Ticker{}, fmt.Errorf("upbit: no ticker for %s", market)
	}

	row := rows[0]
	return Ticker{
		Symbol:      symbol,
		Market:      row.Market,
		TradePrice:  decimal.NewFromFloat(row.TradePrice),
		ChangePrice: decimal.NewFromFloat(row.SignedChangePrice),
		ChangeRate:  decimal.NewFromFloat(row.SignedChangeRate),
		TradedAt:    time.UnixMilli(row.TradeTimestampMs).UTC(),
	}, nil
}
