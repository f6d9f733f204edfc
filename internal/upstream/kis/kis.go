// Package kis talks to the Korea Investment & Securities open API for
// quotes, price history, market indices, and exchange calendar data.
package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"invest-calendar/internal/upstream"
)

const (
	tokenEndpoint    = "/oauth2/tokenP"
	priceEndpoint    = "/uapi/domestic-stock/v1/quotations/inquire-price"
	historyEndpoint  = "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice"
	indexEndpoint    = "/uapi/domestic-stock/v1/quotations/inquire-index-price"
	investorEndpoint = "/uapi/domestic-stock/v1/quotations/inquire-investor"
	holidayEndpoint  = "/uapi/domestic-stock/v1/quotations/chk-holiday"

	trPrice    = "FHKST01010100"
	trHistory  = "FHKST03010100"
	trIndex    = "FHPUP02100000"
	trInvestor = "FHKST01010900"
	trHoliday  = "CTCA0903R"
)

// Options parameterise the KIS client.
type Options struct {
	BaseURL         string
	AppKey          string
	AppSecret       string
	RateLimit       int
	Timeout         time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Client is the KIS market data client.
type Client struct {
	api    *upstream.Client
	cache  *upstream.Cache
	auth   *auth
	logger zerolog.Logger
}

// auth holds credentials and the cached OAuth access token. It implements
// upstream.Provider.
type auth struct {
	baseURL   string
	appKey    string
	appSecret string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func (a *auth) Name() string    { return "kis" }
func (a *auth) BaseURL() string { return a.baseURL }

func (a *auth) Headers(_ context.Context, r *upstream.Request) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	if r.Endpoint == tokenEndpoint {
		return h, nil
	}

	a.mu.Lock()
	token := a.token
	a.mu.Unlock()
	if token == "" {
		return nil, fmt.Errorf("kis: access token not initialised")
	}

	h.Set("authorization", "Bearer "+token)
	h.Set("appkey", a.appKey)
	h.Set("appsecret", a.appSecret)
	h.Set("custtype", "P")
	return h, nil
}

// envelope is the common KIS response wrapper. rt_cd "0" means success;
// anything else is a provider-reported failure and is never retried.
type envelope struct {
	RtCd    string           `json:"rt_cd"`
	MsgCd   string           `json:"msg_cd"`
	Msg     string           `json:"msg1"`
	Output  map[string]any   `json:"output"`
	Output1 map[string]any   `json:"output1"`
	Output2 []map[string]any `json:"output2"`
}

func (e *envelope) check() error {
	if e.RtCd != "" && e.RtCd != "0" {
		return fmt.Errorf("kis rejected request: %s (%s)", e.Msg, e.MsgCd)
	}
	return nil
}

// NewClient constructs a KIS client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://openapi.koreainvestment.com:9443"
	}

	a := &auth{baseURL: baseURL, appKey: opts.AppKey, appSecret: opts.AppSecret}

	return &Client{
		api: upstream.NewClient(a, upstream.Options{
			RateLimit: opts.RateLimit,
			Timeout:   opts.Timeout,
		}, logger),
		cache:  upstream.NewCache(opts.CacheTTL, opts.CacheMaxEntries),
		auth:   a,
		logger: logger.With().Str("component", "kis_client").Logger(),
	}
}

// ensureToken fetches a fresh OAuth token when the cached one is absent or
// close to expiry.
func (c *Client) ensureToken(ctx context.Context) error {
	c.auth.mu.Lock()
	defer c.auth.mu.Unlock()

	if c.auth.token != "" && time.Now().Before(c.auth.expiry) {
		return nil
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.auth.appKey,
		"appsecret":  c.auth.appSecret,
	}
	if err := c.api.Post(ctx, tokenEndpoint, body, &res); err != nil {
		return fmt.Errorf("kis token request: %w", err)
	}
	if res.AccessToken == "" {
		return fmt.Errorf("kis token request: empty access token")
	}

	c.auth.token = res.AccessToken
	c.auth.expiry = time.Now().Add(time.Duration(res.ExpiresIn)*time.Second - time.Minute)
	c.logger.Debug().Time("expiry", c.auth.expiry).Msg("kis access token refreshed")
	return nil
}

func (c *Client) priceRequest(code string) *upstream.Request {
	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", code)

	header := http.Header{}
	header.Set("tr_id", trPrice)

	return &upstream.Request{Method: http.MethodGet, Endpoint: priceEndpoint, Query: query, Header: header}
}

// StockPrice returns the current quote for one stock code. Results are
// served from the client cache within its TTL.
func (c *Client) StockPrice(ctx context.Context, code string) (Quote, error) {
	value, err := c.cache.Do(ctx, upstream.Key("stock_price", code), func(ctx context.Context) (any, error) {
		if err := c.ensureToken(ctx); err != nil {
			return nil, err
		}

		var env envelope
		if err := c.api.Do(ctx, c.priceRequest(code), &env); err != nil {
			return nil, err
		}
		if err := env.check(); err != nil {
			return nil, err
		}
		return mapQuote(code, env.Output), nil
	})
	if err != nil {
		return Quote{}, err
	}
	return value.(Quote), nil
}

// StockPrices fetches current quotes for several codes in one bounded burst.
// Codes whose lookup failed are absent from the result; the first error is
// logged but not returned unless every code failed.
func (c *Client) StockPrices(ctx context.Context, codes []string) (map[string]Quote, error) {
	if len(codes) == 0 {
		return map[string]Quote{}, nil
	}
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	reqs := make([]*upstream.Request, len(codes))
	for i, code := range codes {
		reqs[i] = c.priceRequest(code)
	}

	results := c.api.Batch(ctx, reqs, 5)

	quotes := make(map[string]Quote, len(codes))
	var firstErr error
	for i, res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		var env envelope
		if err := json.Unmarshal(res.Data, &env); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := env.check(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		quotes[codes[i]] = mapQuote(codes[i], env.Output)
	}

	if len(quotes) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return quotes, nil
}

// StockHistory returns the candle series for a code between two dates.
// period is D, W, M, or Y.
func (c *Client) StockHistory(ctx context.Context, code string, from, to time.Time, period string) ([]Candle, error) {
	if period == "" {
		period = "D"
	}
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", code)
	query.Set("FID_INPUT_DATE_1", from.Format("20060102"))
	query.Set("FID_INPUT_DATE_2", to.Format("20060102"))
	query.Set("FID_PERIOD_DIV_CODE", period)
	query.Set("FID_ORG_ADJ_PRC", "0")

	header := http.Header{}
	header.Set("tr_id", trHistory)

	var env envelope
	err := c.api.Do(ctx, &upstream.Request{Method: http.MethodGet, Endpoint: historyEndpoint, Query: query, Header: header}, &env)
	if err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(env.Output2))
	for _, row := range env.Output2 {
		if len(row) == 0 {
			continue
		}
		candles = append(candles, mapCandle(row))
	}
	return candles, nil
}

// MarketIndex returns one index snapshot; cached within the TTL.
func (c *Client) MarketIndex(ctx context.Context, code string) (IndexQuote, error) {
	name := "KOSPI"
	if code == IndexKOSDAQ {
		name = "KOSDAQ"
	}

	value, err := c.cache.Do(ctx, upstream.Key("market_index", code), func(ctx context.Context) (any, error) {
		if err := c.ensureToken(ctx); err != nil {
			return nil, err
		}

		query := url.Values{}
		query.Set("FID_COND_MRKT_DIV_CODE", "U")
		query.Set("FID_INPUT_ISCD", code)

		header := http.Header{}
		header.Set("tr_id", trIndex)

		var env envelope
		err := c.api.Do(ctx, &upstream.Request{Method: http.MethodGet, Endpoint: indexEndpoint, Query: query, Header: header}, &env)
		if err != nil {
			return nil, err
		}
		if err := env.check(); err != nil {
			return nil, err
		}
		return mapIndex(code, name, env.Output), nil
	})
	if err != nil {
		return IndexQuote{}, err
	}
	return value.(IndexQuote), nil
}

// MarketIndices returns the KOSPI and KOSDAQ snapshots. One index failing
// does not hide the other; the error is returned only when both fail.
func (c *Client) MarketIndices(ctx context.Context) ([]IndexQuote, error) {
	var (
		indices  []IndexQuote
		firstErr error
	)
	for _, code := range []string{IndexKOSPI, IndexKOSDAQ} {
		idx, err := c.MarketIndex(ctx, code)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, firstErr
	}
	return indices, nil
}

// InvestorTrend returns per-investor-category trading flows for a stock.
func (c *Client) InvestorTrend(ctx context.Context, code string) ([]InvestorFlow, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", code)

	header := http.Header{}
	header.Set("tr_id", trInvestor)

	var env envelope
	err := c.api.Do(ctx, &upstream.Request{Method: http.MethodGet, Endpoint: investorEndpoint, Query: query, Header: header}, &env)
	if err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}

	flows := make([]InvestorFlow, 0, len(env.Output2))
	for _, row := range env.Output2 {
		flows = append(flows, mapInvestorFlow(row))
	}
	return flows, nil
}

// Holidays returns the exchange's non-trading days from the given date
// onward, as reported by the holiday calendar endpoint.
func (c *Client) Holidays(ctx context.Context, from time.Time) ([]time.Time, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("BASS_DT", from.Format("20060102"))
	query.Set("CTX_AREA_NK", "")
	query.Set("CTX_AREA_FK", "")

	header := http.Header{}
	header.Set("tr_id", trHoliday)

	var env envelope
	err := c.api.Do(ctx, &upstream.Request{Method: http.MethodGet, Endpoint: holidayEndpoint, Query: query, Header: header}, &env)
	if err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}

	var holidays []time.Time
	for _, row := range env.Output2 {
		if upstream.Str(row, "opnd_yn") == "Y" {
			continue
		}
		day, perr := time.Parse("20060102", upstream.Str(row, "bass_dt"))
		if perr != nil {
			continue
		}
		holidays = append(holidays, day)
	}
	return holidays, nil
}
