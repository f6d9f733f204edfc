package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type testProvider struct {
	name    string
	baseURL string
	headers http.Header
}

func (p *testProvider) Name() string    { return p.name }
func (p *testProvider) BaseURL() string { return p.baseURL }
func (p *testProvider) Headers(context.Context, *Request) (http.Header, error) {
	return p.headers, nil
}

func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider := &testProvider{
		name:    "test",
		baseURL: srv.URL,
		headers: http.Header{"X-Api-Key": []string{"secret"}},
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 100
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = RetryPolicy{MaxRetries: 1, Delay: time.Millisecond, Backoff: 2}
	}
	return NewClient(provider, opts, zerolog.Nop()), srv
}

func TestClientGetAppliesProviderHeaders(t *testing.T) {
	var gotKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}), Options{})

	var out map[string]string
	if err := client.Get(context.Background(), "/ping", nil, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("provider header missing, got %q", gotKey)
	}
	if out["status"] != "ok" {
		t.Fatalf("unexpected body: %#v", out)
	}
}

func TestClientPerCallHeaderOverridesProvider(t *testing.T) {
	var gotKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}), Options{})

	req := &Request{
		Method:   http.MethodGet,
		Endpoint: "/ping",
		Header:   http.Header{"X-Api-Key": []string{"override"}},
	}
	if err := client.Do(context.Background(), req, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotKey != "override" {
		t.Fatalf("per-call header should win, got %q", gotKey)
	}
}

func TestClientStatusErrorCarriesBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"msg":"bad code"}`)
	}), Options{})

	err := client.Get(context.Background(), "/quote", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("wrong status: %d", apiErr.Status)
	}
	if apiErr.Body == "" {
		t.Fatal("error should keep the response body")
	}
	if IsTransient(err) {
		t.Fatal("400 must not be transient")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}), Options{Retry: RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, Backoff: 2}})

	var out map[string]string
	if err := client.Get(context.Background(), "/flaky", nil, &out); err != nil {
		t.Fatalf("should recover after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDecodeError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}), Options{})

	var out map[string]string
	err := client.Get(context.Background(), "/quote", nil, &out)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("decode failures must not be retried")
	}
}

func TestClientEmptyBodyOK(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), Options{})

	var out map[string]string
	if err := client.Get(context.Background(), "/empty", nil, &out); err != nil {
		t.Fatalf("empty body should not error: %v", err)
	}
}

func TestClientQueryEncoding(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}), Options{})

	query := url.Values{}
	query.Set("code", "005930")
	query.Set("period", "D")
	if err := client.Get(context.Background(), "/history", query, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotQuery.Get("code") != "005930" || gotQuery.Get("period") != "D" {
		t.Fatalf("query not forwarded: %v", gotQuery)
	}
}

func TestClientBatchIsolatesFailures(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}), Options{})

	reqs := []*Request{
		{Method: http.MethodGet, Endpoint: "/a"},
		{Method: http.MethodGet, Endpoint: "/bad"},
		{Method: http.MethodGet, Endpoint: "/c"},
	}
	results := client.Batch(context.Background(), reqs, 2)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy requests should succeed: %v %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatal("failing request should carry its error")
	}
	if results[0].Request.Endpoint != "/a" || results[2].Request.Endpoint != "/c" {
		t.Fatal("results must preserve input order")
	}
}

func TestClientBatchHonoursConcurrencyCap(t *testing.T) {
	var inflight, peak atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}), Options{})

	reqs := make([]*Request, 8)
	for i := range reqs {
		reqs[i] = &Request{Method: http.MethodGet, Endpoint: fmt.Sprintf("/r%d", i)}
	}
	client.Batch(context.Background(), reqs, 2)

	if peak.Load() > 2 {
		t.Fatalf("concurrency cap exceeded: peak %d", peak.Load())
	}
}
