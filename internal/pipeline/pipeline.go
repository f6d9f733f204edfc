// Package pipeline collects heterogeneous upstream data through a priority
// queue drained by a fixed pool of workers. Each request is dispatched to
// the fetcher registered for its source, its outcome is captured in a
// response, and the response is handed to the sink registered for its data
// type. One request's failure never reaches another request or kills a
// worker.
package pipeline

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Source identifies an upstream data provider.
type Source string

const (
	SourceKIS        Source = "kis"
	SourceDART       Source = "dart"
	SourcePerplexity Source = "perplexity"
	SourceUpbit      Source = "upbit"
)

// DataType identifies what a request collects.
type DataType string

const (
	TypeStockPrice   DataType = "stock_price"
	TypeStockHistory DataType = "stock_history"
	TypeMarketIndex  DataType = "market_index"
	TypeDisclosure   DataType = "disclosure"
	TypeNews         DataType = "news"
	TypeCrypto       DataType = "crypto"
	TypeExchangeRate DataType = "exchange_rate"
)

// Request is one unit of collection work. It is immutable once enqueued.
// Lower Priority values are served first; equal priorities drain in enqueue
// order.
type Request struct {
	Type     DataType
	Source   Source
	Params   map[string]string
	Priority int
}

// Param returns a request parameter or "" when absent.
func (r Request) Param(key string) string {
	return r.Params[key]
}

// Response is produced exactly once per dequeued request. Err carries the
// failure instead of propagating it.
type Response struct {
	Request   Request
	Data      any
	Err       error
	FetchedAt time.Time
}

// Fetcher retrieves data for requests belonging to one source.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (any, error)
}

// Sink persists fetched data for one data type.
type Sink interface {
	Store(ctx context.Context, resp Response) error
}

// Options tune the pipeline.
type Options struct {
	Workers      int
	PollInterval time.Duration
	// OnResponse, when set, observes every response after persistence.
	OnResponse func(Response)
}

// Pipeline owns the queue and the worker pool.
type Pipeline struct {
	workers      int
	pollInterval time.Duration
	onResponse   func(Response)
	logger       zerolog.Logger

	fetchers map[Source]Fetcher
	sinks    map[DataType]Sink

	mu    sync.Mutex
	queue requestQueue
	seq   uint64

	notify   chan struct{}
	quit     chan struct{}
	running  atomic.Bool
	inflight atomic.Int64
	wg       sync.WaitGroup
}

// New constructs a stopped pipeline.
func New(opts Options, logger zerolog.Logger) *Pipeline {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	return &Pipeline{
		workers:      workers,
		pollInterval: poll,
		onResponse:   opts.OnResponse,
		logger:       logger.With().Str("component", "pipeline").Logger(),
		fetchers:     make(map[Source]Fetcher),
		sinks:        make(map[DataType]Sink),
		notify:       make(chan struct{}, 1),
	}
}

// RegisterFetcher binds a source to its fetcher. Not safe to call after
// Start.
func (p *Pipeline) RegisterFetcher(source Source, f Fetcher) {
	p.fetchers[source] = f
}

// RegisterSink binds a data type to its persistence step. Data types without
// a sink are fetched and dropped, which is deliberate for types surfaced
// only through the API.
func (p *Pipeline) RegisterSink(dataType DataType, s Sink) {
	p.sinks[dataType] = s
}

// Enqueue adds one request to the queue.
func (p *Pipeline) Enqueue(req Request) {
	p.mu.Lock()
	p.seq++
	heap.Push(&p.queue, &queueItem{req: req, seq: p.seq})
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// EnqueueBatch adds requests preserving their slice order within equal
// priorities.
func (p *Pipeline) EnqueueBatch(reqs []Request) {
	for _, req := range reqs {
		p.Enqueue(req)
	}
}

// QueueLen reports the number of queued (not in-flight) requests.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Quiesced reports whether the queue is empty and no worker is mid-request.
func (p *Pipeline) Quiesced() bool {
	return p.QueueLen() == 0 && p.inflight.Load() == 0
}

// Start spawns the worker pool. Fetches run under ctx; cancelling it has the
// same effect as Stop for in-flight calls.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.quit = make(chan struct{})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Msg("pipeline started")
}

// Stop flips the running flag and waits for every worker to exit. A worker
// mid-fetch completes its request; no new request is dequeued afterwards.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.quit)
	p.wg.Wait()
	p.logger.Info().Msg("pipeline stopped")
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker started")

	for p.running.Load() {
		req, ok := p.dequeue()
		if !ok {
			timer := time.NewTimer(p.pollInterval)
			select {
			case <-p.notify:
			case <-timer.C:
			case <-p.quit:
				timer.Stop()
				logger.Debug().Msg("worker stopped")
				return
			case <-ctx.Done():
				timer.Stop()
				logger.Debug().Msg("worker context cancelled")
				return
			}
			timer.Stop()
			continue
		}

		p.inflight.Add(1)
		p.process(ctx, req)
		p.inflight.Add(-1)
	}

	logger.Debug().Msg("worker stopped")
}

func (p *Pipeline) dequeue() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.Len() == 0 {
		return Request{}, false
	}
	it := heap.Pop(&p.queue).(*queueItem)
	return it.req, true
}

func (p *Pipeline) process(ctx context.Context, req Request) {
	resp := p.fetch(ctx, req)
	if resp.Err != nil {
		p.logger.Error().
			Err(resp.Err).
			Str("type", string(req.Type)).
			Str("source", string(req.Source)).
			Msg("collection failed")
	} else {
		p.persist(ctx, resp)
	}

	if p.onResponse != nil {
		p.onResponse(resp)
	}
}

func (p *Pipeline) fetch(ctx context.Context, req Request) (resp Response) {
	resp = Response{Request: req, FetchedAt: time.Now().UTC()}

	f, ok := p.fetchers[req.Source]
	if !ok {
		resp.Err = fmt.Errorf("no fetcher registered for source %q", req.Source)
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			resp.Err = fmt.Errorf("fetch panic: %v", r)
		}
	}()
	resp.Data, resp.Err = f.Fetch(ctx, req)
	return resp
}

func (p *Pipeline) persist(ctx context.Context, resp Response) {
	if resp.Data == nil {
		return
	}
	sink, ok := p.sinks[resp.Request.Type]
	if !ok {
		return
	}
	if err := sink.Store(ctx, resp); err != nil {
		p.logger.Error().
			Err(err).
			Str("type", string(resp.Request.Type)).
			Msg("failed to persist collected data")
	}
}

// queueItem orders requests by priority, then by enqueue sequence so equal
// priorities never starve each other.
type queueItem struct {
	req Request
	seq uint64
}

type requestQueue []*queueItem

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority < q[j].req.Priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(*queueItem)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
