package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
	"invest-calendar/internal/upstream/upbit"
)

func TestStockPrice(t *testing.T) {
	env := newTestEnv(t)
	env.market.quote = kis.Quote{
		StockCode:    "005930",
		StockName:    "삼성전자",
		CurrentPrice: decimal.NewFromInt(71000),
	}

	rec := env.do(t, http.MethodGet, "/api/stocks/005930", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote kis.Quote
	decodeResponse(t, rec, &quote)
	require.Equal(t, "005930", quote.StockCode)
	require.True(t, quote.CurrentPrice.Equal(decimal.NewFromInt(71000)))
}

func TestStockPriceInvalidCode(t *testing.T) {
	env := newTestEnv(t)

	for _, code := range []string{"12345", "1234567", "00593a"} {
		rec := env.do(t, http.MethodGet, "/api/stocks/"+code, "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "code %q", code)
	}
}

func TestStockPriceUpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.market.err = &upstream.APIError{Provider: "kis", Status: http.StatusServiceUnavailable}

	rec := env.do(t, http.MethodGet, "/api/stocks/005930", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.market.err = &upstream.APIError{Provider: "kis", Status: http.StatusBadRequest}
	rec = env.do(t, http.MethodGet, "/api/stocks/005930", "", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStockHistory(t *testing.T) {
	env := newTestEnv(t)
	env.market.candles = []kis.Candle{{Date: "2024-03-15", Close: decimal.NewFromInt(70500)}}

	rec := env.do(t, http.MethodGet, "/api/stocks/005930/history?from=2024-03-01&to=2024-03-15&period=W", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		StockCode string       `json:"stock_code"`
		Period    string       `json:"period"`
		Candles   []kis.Candle `json:"candles"`
	}
	decodeResponse(t, rec, &body)
	require.Equal(t, "W", body.Period)
	require.Len(t, body.Candles, 1)

	rec = env.do(t, http.MethodGet, "/api/stocks/005930/history?period=X", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stocks/005930/history?from=2024-03-15&to=2024-03-01", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockSearchLocalFirst(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.stocks.UpsertStock(context.Background(), storage.Stock{Code: "005930", Name: "삼성전자"}))
	env.disclosure.matches = []dart.Disclosure{{CorpName: "삼성전자"}}

	rec := env.do(t, http.MethodGet, "/api/stocks/search?q=005930", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Source string `json:"source"`
	}
	decodeResponse(t, rec, &body)
	require.Equal(t, "local", body.Source)

	// unknown locally falls through to DART
	rec = env.do(t, http.MethodGet, "/api/stocks/search?q=카카오", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeResponse(t, rec, &body)
	require.Equal(t, "dart", body.Source)

	rec = env.do(t, http.MethodGet, "/api/stocks/search", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stocks/search?q=x&limit=500", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketIndices(t *testing.T) {
	env := newTestEnv(t)
	env.market.indices = []kis.IndexQuote{{IndexCode: "0001", IndexName: "KOSPI"}}

	rec := env.do(t, http.MethodGet, "/api/market/indices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Indices []kis.IndexQuote `json:"indices"`
	}
	decodeResponse(t, rec, &body)
	require.Len(t, body.Indices, 1)
	require.Equal(t, "KOSPI", body.Indices[0].IndexName)
}

func TestCryptoTicker(t *testing.T) {
	env := newTestEnv(t)
	env.crypto.ticker = upbit.Ticker{Symbol: "BTC", Market: "KRW-BTC", TradePrice: decimal.NewFromInt(95000000)}

	rec := env.do(t, http.MethodGet, "/api/crypto/btc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ticker upbit.Ticker
	decodeResponse(t, rec, &ticker)
	require.Equal(t, "KRW-BTC", ticker.Market)
}

func TestDisclosures(t *testing.T) {
	env := newTestEnv(t)
	env.disclosure.recent = []dart.Disclosure{{CorpName: "삼성전자", ReportName: "사업보고서"}}

	rec := env.do(t, http.MethodGet, "/api/disclosures?days=7&important_only=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Disclosures []dart.Disclosure `json:"disclosures"`
	}
	decodeResponse(t, rec, &body)
	require.Len(t, body.Disclosures, 1)

	rec = env.do(t, http.MethodGet, "/api/disclosures?days=31", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/disclosures?corp_class=Z", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplain(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/explain", "", map[string]string{"term": "PER"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Subject string `json:"subject"`
	}
	decodeResponse(t, rec, &body)
	require.Equal(t, "PER", body.Subject)

	rec = env.do(t, http.MethodPost, "/api/explain", "", map[string]string{"title": "금리 인상", "details": "0.25%p"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/explain", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarEventCRUD(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "owner@example.com")

	// anonymous writes are rejected
	rec := env.do(t, http.MethodPost, "/api/calendar/events", "", map[string]string{
		"title":      "실적 발표",
		"event_date": "2024-03-20",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/calendar/events", token, map[string]string{
		"title":      "실적 발표",
		"event_date": "2024-03-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created storage.CalendarEvent
	decodeResponse(t, rec, &created)
	require.Equal(t, storage.EventCustom, created.Type)
	require.Equal(t, "user", created.Source)
	require.NotNil(t, created.CreatedBy)

	// reads are public
	rec = env.do(t, http.MethodGet, "/api/calendar/events?from=2024-03-01&to=2024-03-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Events []storage.CalendarEvent `json:"events"`
	}
	decodeResponse(t, rec, &listing)
	require.Len(t, listing.Events, 1)

	// another user cannot touch it
	_, otherToken := env.login(t, "other@example.com")
	rec = env.do(t, http.MethodDelete, "/api/calendar/events/1", otherToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/calendar/events/1", token, map[string]string{
		"title":      "실적 발표 (수정)",
		"event_date": "2024-03-21",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated storage.CalendarEvent
	decodeResponse(t, rec, &updated)
	require.Equal(t, "실적 발표 (수정)", updated.Title)

	rec = env.do(t, http.MethodDelete, "/api/calendar/events/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/calendar/events/1", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "a@b.com")

	rec := env.do(t, http.MethodPost, "/api/calendar/events", token, map[string]string{
		"event_date": "2024-03-20",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing title")

	rec = env.do(t, http.MethodPost, "/api/calendar/events", token, map[string]string{
		"title":      "x",
		"event_date": "March 20",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "bad date")

	rec = env.do(t, http.MethodPost, "/api/calendar/events", token, map[string]string{
		"type":       "party",
		"title":      "x",
		"event_date": "2024-03-20",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown type")

	rec = env.do(t, http.MethodGet, "/api/calendar/events?type=party", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/calendar/events?from=2024-03-31&to=2024-03-01", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarSyncUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "a@b.com")

	rec := env.do(t, http.MethodPost, "/api/calendar/sync", token, nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestBookmarks(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "a@b.com")

	event, err := env.events.InsertEvent(context.Background(), storage.CalendarEvent{
		Type:      storage.EventEarnings,
		Title:     "삼성전자: 사업보고서",
		EventDate: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// the event must exist
	rec := env.do(t, http.MethodPost, "/api/bookmarks/", token, map[string]any{"event_id": 999})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/bookmarks/", token, map[string]any{"event_id": event.ID, "memo": "중요"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var bookmark storage.Bookmark
	decodeResponse(t, rec, &bookmark)
	require.Equal(t, user.ID, bookmark.UserID)
	require.Equal(t, "중요", bookmark.Memo)

	// bookmarking twice conflicts
	rec = env.do(t, http.MethodPost, "/api/bookmarks/", token, map[string]any{"event_id": event.ID})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/bookmarks/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Bookmarks []storage.Bookmark `json:"bookmarks"`
	}
	decodeResponse(t, rec, &listing)
	require.Len(t, listing.Bookmarks, 1)

	rec = env.do(t, http.MethodDelete, "/api/bookmarks/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// anonymous access is rejected across the board
	rec = env.do(t, http.MethodGet, "/api/bookmarks/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWatchlist(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "a@b.com")

	rec := env.do(t, http.MethodPost, "/api/watchlist/", token, map[string]string{
		"stock_code":   "005930",
		"stock_name":   "삼성전자",
		"target_price": "75000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var item storage.WatchlistItem
	decodeResponse(t, rec, &item)
	require.NotNil(t, item.TargetPrice)
	require.True(t, item.TargetPrice.Equal(decimal.NewFromInt(75000)))

	rec = env.do(t, http.MethodPost, "/api/watchlist/", token, map[string]string{"stock_code": "bad"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/watchlist/", token, map[string]string{
		"stock_code":   "000660",
		"target_price": "-5",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// clearing the target is allowed
	rec = env.do(t, http.MethodPut, "/api/watchlist/1", token, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, env.watchlist.items[1].TargetPrice)

	rec = env.do(t, http.MethodGet, "/api/watchlist/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Watchlist []storage.WatchlistItem `json:"watchlist"`
	}
	decodeResponse(t, rec, &listing)
	require.Len(t, listing.Watchlist, 1)

	rec = env.do(t, http.MethodDelete, "/api/watchlist/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/watchlist/1", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
