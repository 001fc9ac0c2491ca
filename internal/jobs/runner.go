// Package jobs runs planner work in the background, one job at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned by Submit when no slot is free
	ErrQueueFull = errors.New("job queue full")
	// ErrStopped is returned by Submit after Stop, and is the result of
	// jobs still queued when the runner stops
	ErrStopped = errors.New("job runner stopped")
)

// Func is the work of one job
type Func func(ctx context.Context) error

// Job is a submitted unit of work whose outcome can be awaited
type Job struct {
	ID          string
	Name        string
	SubmittedAt time.Time

	fn   Func
	done chan struct{}
	err  error
}

// Done is closed once the job has finished or was abandoned
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the job result. It is nil until Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}

// Runner executes submitted jobs sequentially on a single worker
type Runner struct {
	queue  chan *Job
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// NewRunner creates a runner holding at most size pending jobs
func NewRunner(size int, logger *slog.Logger) *Runner {
	if size < 1 {
		size = 1
	}
	return &Runner{
		queue:  make(chan *Job, size),
		stop:   make(chan struct{}),
		logger: logger.With("component", "job_runner"),
	}
}

// Start launches the worker. It runs until ctx ends or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Submit queues fn without blocking
func (r *Runner) Submit(name string, fn Func) (*Job, error) {
	job := &Job{
		ID:          uuid.New().String(),
		Name:        name,
		SubmittedAt: time.Now(),
		fn:          fn,
		done:        make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrStopped
	}
	select {
	case r.queue <- job:
		r.logger.Debug("Job queued", "job_id", job.ID, "name", name, "pending", len(r.queue))
		return job, nil
	default:
		return nil, ErrQueueFull
	}
}

// Pending returns the number of queued jobs
func (r *Runner) Pending() int {
	return len(r.queue)
}

// Stop ends the worker after its current job and abandons queued jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()

	abandoned := 0
	for {
		select {
		case job := <-r.queue:
			job.finish(ErrStopped)
			abandoned++
		default:
			if abandoned > 0 {
				r.logger.Info("Abandoned queued jobs", "count", abandoned)
			}
			return
		}
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case job := <-r.queue:
			r.run(ctx, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, job *Job) {
	started := time.Now()
	err := safeCall(ctx, job.fn)
	job.finish(err)

	if err != nil {
		r.logger.Error("Job failed",
			"job_id", job.ID,
			"name", job.Name,
			"error", err,
			"duration_ms", time.Since(started).Milliseconds())
		return
	}
	r.logger.Debug("Job completed",
		"job_id", job.ID,
		"name", job.Name,
		"queued_ms", started.Sub(job.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(started).Milliseconds())
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}
