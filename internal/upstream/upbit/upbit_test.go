package upbit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:   srv.URL,
		RateLimit: 100,
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
}

func TestTicker(t *testing.T) {
	var gotMarkets string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMarkets = r.URL.Query().Get("markets")
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"market":              "KRW-BTC",
			"trade_price":         95000000.0,
			"signed_change_price": -1500000.0,
			"signed_change_rate":  -0.0155,
			"trade_timestamp":     1710482400000,
		}})
	}))

	ticker, err := client.Ticker(context.Background(), "btc")
	if err != nil {
		t.Fatalf("ticker: %v", err)
	}
	if gotMarkets != "KRW-BTC" {
		t.Fatalf("symbol should be uppercased into a KRW market, got %q", gotMarkets)
	}
	if ticker.Symbol != "BTC" || ticker.Market != "KRW-BTC" {
		t.Fatalf("identity fields wrong: %+v", ticker)
	}
	if ticker.TradePrice.String() != "95000000" {
		t.Fatalf("trade price = %s", ticker.TradePrice)
	}
	if !ticker.ChangePrice.IsNegative() || !ticker.ChangeRate.IsNegative() {
		t.Fatalf("signed change lost: %+v", ticker)
	}
	if ticker.TradedAt.IsZero() || ticker.TradedAt.Location() != time.UTC {
		t.Fatalf("traded at = %v", ticker.TradedAt)
	}
}

func TestTickerEmptySymbol(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))

	if _, err := client.Ticker(context.Background(), "  "); err == nil {
		t.Fatal("empty symbol must fail")
	}
}

func TestTickerUnknownMarket(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))

	if _, err := client.Ticker(context.Background(), "NOPE"); err == nil {
		t.Fatal("empty ticker list must fail")
	}
}
