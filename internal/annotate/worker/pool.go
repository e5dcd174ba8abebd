package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/prosecheck/internal/annotate/rule"
)

// Pool size bounds. The pool limits total parallel cross-paragraph
// requests; per-paragraph single-flight is the orchestrator's job.
const (
	DefaultPoolSize = 2
	MaxPoolSize     = 8
	defaultQueue    = 32
)

// Errors returned by pool operations.
var (
	ErrPoolStopped    = errors.New("worker: pool stopped")
	ErrPoolNotStarted = errors.New("worker: pool not started")
)

// PipelineFactory builds a rule pipeline. The pool calls it once per
// worker goroutine so each worker owns its rules outright; rules that
// carry state (Lua interpreters) never see concurrent calls.
type PipelineFactory func() *rule.Pipeline

// Pool runs analysis requests on a bounded set of worker goroutines.
type Pool struct {
	size      int
	queue     int
	factory   PipelineFactory
	requests  chan []byte
	responses chan []byte
	quit      chan struct{}
	wg        sync.WaitGroup
	started   atomic.Bool
	stopOnce  sync.Once
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolSize sets the number of worker goroutines, clamped to
// [1, MaxPoolSize].
func WithPoolSize(n int) PoolOption {
	return func(p *Pool) {
		if n < 1 {
			n = 1
		}
		if n > MaxPoolSize {
			n = MaxPoolSize
		}
		p.size = n
	}
}

// WithQueueDepth sets the request queue depth.
func WithQueueDepth(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queue = n
		}
	}
}

// NewPool creates a pool that builds each worker's pipeline with factory.
func NewPool(factory PipelineFactory, opts ...PoolOption) *Pool {
	p := &Pool{
		size:    DefaultPoolSize,
		queue:   defaultQueue,
		factory: factory,
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.requests = make(chan []byte, p.queue)
	p.responses = make(chan []byte, p.queue)
	return p
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	if p.started.Swap(true) {
		return
	}
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop shuts the pool down and waits for workers to drain, or until the
// context is done.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.started.Load() {
		return ErrPoolNotStarted
	}
	p.stopOnce.Do(func() { close(p.quit) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit encodes and enqueues a request. It blocks until the request is
// queued, the context is done, or the pool stops.
func (p *Pool) Submit(ctx context.Context, req Request) error {
	msg, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	// The request channel is buffered, so a bare select could enqueue
	// into a stopped pool.
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}
	select {
	case p.requests <- msg:
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses is the stream of encoded result and error messages.
func (p *Pool) Responses() <-chan []byte {
	return p.responses
}

// run is one worker goroutine: decode, analyze, respond.
func (p *Pool) run() {
	defer p.wg.Done()
	pipeline := p.factory()

	for {
		select {
		case <-p.quit:
			return
		case msg := <-p.requests:
			p.respond(p.handle(pipeline, msg))
		}
	}
}

// handle analyzes one request, converting decode failures and rule panics
// into error responses.
func (p *Pool) handle(pipeline *rule.Pipeline, msg []byte) (resp Response) {
	req, err := DecodeRequest(msg)
	if err != nil {
		return Response{Err: err.Error()}
	}

	resp = Response{ID: req.ID, UnitID: req.UnitID, DocVersion: req.DocVersion}
	defer func() {
		if r := recover(); r != nil {
			resp.Findings = nil
			resp.Err = fmt.Sprintf("rule panic: %v", r)
		}
	}()

	resp.Findings = pipeline.Run(req.Text)
	return resp
}

// respond encodes and sends a response unless the pool is stopping.
func (p *Pool) respond(resp Response) {
	msg, err := EncodeResponse(resp)
	if err != nil {
		msg, _ = EncodeResponse(Response{ID: resp.ID, UnitID: resp.UnitID, DocVersion: resp.DocVersion, Err: err.Error()})
	}
	select {
	case p.responses <- msg:
	case <-p.quit:
	}
}
