package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider supplies the upstream-specific pieces of a request: where it goes
// and how it authenticates. Concrete providers (market data, disclosures, AI
// explanations, crypto tickers) implement this and nothing else; the request
// cycle itself lives here.
type Provider interface {
	Name() string
	BaseURL() string
	Headers(ctx context.Context, r *Request) (http.Header, error)
}

// Request describes one upstream HTTP call.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     any         // marshalled to JSON when non-nil
	Header   http.Header // per-call headers merged over the provider's
}

// Result pairs a batch request with its outcome. Err is set instead of Data
// when that request failed; other requests in the batch are unaffected.
type Result struct {
	Request *Request
	Data    json.RawMessage
	Err     error
}

// Options tune a client.
type Options struct {
	RateLimit int // calls per second
	Timeout   time.Duration
	Retry     RetryPolicy
}

// Client executes requests against one upstream provider. It owns a pooled
// HTTP transport and applies rate limiting then retry around every round
// trip.
type Client struct {
	provider Provider
	http     *http.Client
	limiter  *Limiter
	retry    RetryPolicy
	logger   zerolog.Logger
}

// NewClient constructs a client for the given provider.
func NewClient(provider Provider, opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	retry := opts.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetry()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		provider: provider,
		http:     &http.Client{Timeout: timeout, Transport: transport},
		limiter:  NewLimiter(rateLimit),
		retry:    retry,
		logger:   logger.With().Str("component", provider.Name()+"_client").Logger(),
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Endpoint: endpoint, Query: query}, out)
}

// Post issues a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Endpoint: endpoint, Body: body}, out)
}

// Do executes the request under the client's rate limit and retry policy.
func (c *Client) Do(ctx context.Context, r *Request, out any) error {
	op := r.Method + " " + r.Endpoint
	return c.retry.Do(ctx, c.logger, op, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		return c.roundTrip(ctx, r, out)
	})
}

// Batch runs requests concurrently, at most maxConcurrent at a time, and
// returns one result per request in input order. A failure in one request
// never aborts the others.
func (c *Client) Batch(ctx context.Context, reqs []*Request, maxConcurrent int) []Result {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, r *Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var raw json.RawMessage
			err := c.Do(ctx, r, &raw)
			results[i] = Result{Request: r, Data: raw, Err: err}
			if err != nil {
				c.logger.Error().Err(err).Str("endpoint", r.Endpoint).Msg("batch request failed")
			}
		}(i, r)
	}
	wg.Wait()

	return results
}

func (c *Client) roundTrip(ctx context.Context, r *Request, out any) error {
	endpoint := c.provider.BaseURL() + r.Endpoint
	if len(r.Query) > 0 {
		endpoint += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, bodyReader)
	if err != nil {
		return err
	}

	headers, err := c.provider.Headers(ctx, r)
	if err != nil {
		return err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range r.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &APIError{Provider: c.provider.Name(), Status: resp.StatusCode, Body: string(payload)}
	}

	if out == nil || len(strings.TrimSpace(string(payload))) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &DecodeError{Provider: c.provider.Name(), Raw: string(payload), Err: err}
	}
	return nil
}
