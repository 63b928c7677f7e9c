package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers.
// Jobs observe ctx; cancelling it stops the pool like Shutdown.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job to the pool for execution. It returns false if the
// pool was stopped before the job could be queued.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait closes the queue, waits for all jobs to complete and returns their results
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}

	return results
}

// Shutdown shuts down the worker pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run executes jobs on a fresh pool and returns their results in completion
// order. Submission happens in the background so the result channel never
// backs up against a full queue.
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for _, job := range jobs {
			if !pool.Submit(job) {
				return
			}
		}
	}()

	// Drain results while jobs are still being submitted
	var results []Result
	done := make(chan struct{})
	go func() {
		<-submitted
		close(pool.jobQueue)
		pool.wg.Wait()
		pool.closeResults()
		close(done)
	}()
	for result := range pool.results {
		results = append(results, result)
	}
	<-done
	pool.Shutdown()

	return results
}
