package worker

import (
	"context"
	"fmt"
	"sync"

	"odysseyscraper/pkg/logger"
)

// Handler processes a single job on the worker with the given id
type Handler[J, R any] func(ctx context.Context, workerID int, job J) R

// Pool runs a fixed number of workers over a job queue and emits one result
// per processed job. Cancellation is checked between jobs, so a job that has
// started always produces its result.
type Pool[J, R any] struct {
	name        string
	numWorkers  int
	jobQueue    chan J
	resultQueue chan R
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handle      Handler[J, R]
	logger      logger.Logger
	stopOnce    sync.Once
}

// New creates a pool of numWorkers workers. The pool stops taking jobs
// once ctx is done.
func New[J, R any](ctx context.Context, name string, numWorkers int, handle Handler[J, R], log logger.Logger) *Pool[J, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool[J, R]{
		name:        name,
		numWorkers:  numWorkers,
		jobQueue:    make(chan J, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan R, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handle:      handle,
		logger:      logger.OrDefault(log).WithField("pool", name),
	}
}

// Start launches the workers
func (p *Pool[J, R]) Start() {
	p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for the workers to drain it and closes
// the result channel. Results must be consumed concurrently with Stop.
func (p *Pool[J, R]) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobQueue)
		p.wg.Wait()
		close(p.resultQueue)
		p.cancel()
		p.logger.Debug("Worker pool stopped")
	})
}

// Submit queues a job. It blocks while the queue is full and fails once the
// pool's context is done.
func (p *Pool[J, R]) Submit(job J) error {
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("%s pool is shutting down: %w", p.name, err)
	}
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("%s pool is shutting down: %w", p.name, p.ctx.Err())
	}
}

// Results returns the result channel. It is closed by Stop.
func (p *Pool[J, R]) Results() <-chan R {
	return p.resultQueue
}

func (p *Pool[J, R]) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		// Drain without processing once cancelled so Stop can finish
		if p.ctx.Err() != nil {
			continue
		}

		result := p.handle(p.ctx, id, job)

		// The result of a started job is always delivered
		p.resultQueue <- result
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// QueueSize returns the number of jobs waiting
func (p *Pool[J, R]) QueueSize() int {
	return len(p.jobQueue)
}

// Workers returns the number of workers
func (p *Pool[J, R]) Workers() int {
	return p.numWorkers
}

// Map runs handle over jobs on numWorkers workers and returns the results
// in completion order. Jobs not started before ctx is done produce no result.
func Map[J, R any](ctx context.Context, name string, numWorkers int, jobs []J, handle Handler[J, R], log logger.Logger) []R {
	pool := New(ctx, name, numWorkers, handle, log)
	pool.Start()

	results := make([]R, 0, len(jobs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()

	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			break
		}
	}
	pool.Stop()
	<-done
	return results
}
