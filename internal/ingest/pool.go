package ingest

import (
	"context"
	"runtime"
	"sync"

	"github.com/kozaktomas/photo-library/internal/observability"
)

// Pipeline is the work the pool runs. *Ingester implements it.
type Pipeline interface {
	Ingest(ctx context.Context, data []byte) (*Result, error)
}

// Pool bounds the number of uploads ingested at once. A job that has
// started runs to completion even if its caller goes away.
type Pool struct {
	pipeline Pipeline
	metrics  *observability.Metrics
	sem      chan struct{}
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most workers jobs at once. Zero or
// negative means one per CPU.
func NewPool(pipeline Pipeline, workers int, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		pipeline: pipeline,
		metrics:  metrics,
		sem:      make(chan struct{}, workers),
		done:     make(chan struct{}),
	}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return cap(p.sem)
}

type outcome struct {
	res *Result
	err error
}

// Submit waits for a free worker and ingests data. Waiting honours ctx;
// once started, the job is detached from ctx's cancellation. If ctx ends
// while the job runs, Submit returns OperationCancelled and the job
// finishes in the background.
func (p *Pool) Submit(ctx context.Context, data []byte) (*Result, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, newError(OperationCancelled, 0, ErrPoolClosed)
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return nil, newError(OperationCancelled, 0, ctx.Err())
	case <-p.done:
		p.wg.Done()
		return nil, newError(OperationCancelled, 0, ErrPoolClosed)
	}

	results := make(chan outcome, 1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.metrics.InFlight(1)
		defer p.metrics.InFlight(-1)

		res, err := p.pipeline.Ingest(context.WithoutCancel(ctx), data)
		results <- outcome{res: res, err: err}
	}()

	select {
	case o := <-results:
		return o.res, o.err
	case <-ctx.Done():
		return nil, newError(OperationCancelled, 0, ctx.Err())
	}
}

// Close stops accepting jobs, releases queued submitters and waits for
// running jobs until ctx ends.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
