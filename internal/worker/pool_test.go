package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// checkResult implements Result
type checkResult struct {
	claimID int
	err     error
}

func (r *checkResult) GetError() error {
	return r.err
}

// checkJob simulates one claim orchestration
type checkJob struct {
	claimID   int
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *checkJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &checkResult{claimID: j.claimID, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &checkResult{claimID: j.claimID, err: errors.New("verify failed")}
	}
	return &checkResult{claimID: j.claimID}
}

func TestNewPool(t *testing.T) {
	ctx := context.Background()

	if p := NewPool(ctx, 5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(ctx, 0); p.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool(ctx, -1); p.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var executed int32
	count := 3

	for i := 1; i <= count; i++ {
		pool.Submit(&checkJob{claimID: i, executed: &executed})
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&checkJob{claimID: 1, shouldErr: true})
	pool.Submit(&checkJob{claimID: 2})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	failed := 0
	for _, res := range results {
		if res.GetError() != nil {
			failed++
			if res.(*checkResult).claimID != 1 {
				t.Errorf("unexpected failing claim %d", res.(*checkResult).claimID)
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 error, got %d", failed)
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan bool)
	go func() {
		done <- pool.Submit(&checkJob{claimID: 1})
	}()

	select {
	case queued := <-done:
		if queued {
			t.Error("expected Submit to report a stopped pool")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestRun_ManyJobs(t *testing.T) {
	workers := 3
	var current, maxConcurrent int32
	var mu sync.Mutex

	jobs := make([]Job, 0, 40)
	for i := 1; i <= 40; i++ {
		jobs = append(jobs, &trackingJob{
			start: func() {
				n := atomic.AddInt32(&current, 1)
				mu.Lock()
				if n > maxConcurrent {
					maxConcurrent = n
				}
				mu.Unlock()
			},
			end: func() { atomic.AddInt32(&current, -1) },
		})
	}

	results := Run(context.Background(), workers, jobs)
	if len(results) != 40 {
		t.Fatalf("expected 40 results, got %d", len(results))
	}

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestRun_Empty(t *testing.T) {
	if results := Run(context.Background(), 2, nil); results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		&checkJob{claimID: 1, duration: time.Second},
		&checkJob{claimID: 2, duration: time.Second},
	}

	done := make(chan []Result)
	go func() { done <- Run(ctx, 1, jobs) }()

	select {
	case results := <-done:
		for _, r := range results {
			if r.GetError() == nil {
				t.Error("expected cancelled jobs to report an error")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// trackingJob reports when it starts and ends
type trackingJob struct {
	start func()
	end   func()
}

func (j *trackingJob) Execute(ctx context.Context) Result {
	j.start()
	time.Sleep(5 * time.Millisecond)
	j.end()
	return &checkResult{}
}
