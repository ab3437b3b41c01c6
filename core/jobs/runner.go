// Package jobs runs background work on a bounded worker pool and schedules recurring jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
)

const queueSize = 64

var (
	// errors
	ErrJobNotFound   = errors.New("job not found")
	ErrTimeout       = errors.New("job timed out")
	ErrRunnerStopped = errors.New("job runner is stopped")
)

// States
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

type (
	// Func is a unit of background work. Its result is stored on the job record.
	Func func(ctx context.Context) (interface{}, error)

	Job struct {
		ID         string      `json:"id"`
		Kind       string      `json:"kind"`
		State      string      `json:"state"`
		Result     interface{} `json:"result,omitempty"`
		Error      string      `json:"error,omitempty"`
		CreatedAt  time.Time   `json:"created_at"`
		StartedAt  *time.Time  `json:"started_at,omitempty"`
		FinishedAt *time.Time  `json:"finished_at,omitempty"`
	}

	entry struct {
		job  Job
		fn   Func
		done chan struct{}
	}

	// Runner executes submitted jobs on a fixed number of workers.
	// Every job gets the same timeout; a job that errors, panics or times out ends FAILED.
	// Finished jobs older than the retention window are forgotten.
	Runner struct {
		workers   int
		timeout   time.Duration
		retention time.Duration
		logger    core.Logger

		queue   chan *entry
		quit    chan struct{}
		wg      sync.WaitGroup
		sending sync.WaitGroup // Submit calls between registering and queueing
		mu      sync.RWMutex
		jobs    map[string]*entry
		started bool
		stopped bool
	}
)

func (j Job) Finished() bool {
	return j.State == StateSucceeded || j.State == StateFailed
}

func NewRunner(conf *core.Config, logger core.Logger) *Runner {
	return &Runner{
		workers:   conf.Jobs.Workers,
		timeout:   conf.Jobs.Timeout,
		retention: conf.Jobs.Retention,
		logger:    logger,
		queue:     make(chan *entry, queueSize),
		quit:      make(chan struct{}),
		jobs:      make(map[string]*entry),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
}

// Submit records a PENDING job and queues it. It blocks while the queue is full.
func (r *Runner) Submit(ctx context.Context, kind string, fn Func) (Job, error) {
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     StatePending,
			CreatedAt: time.Now().UTC(),
		},
		fn:   fn,
		done: make(chan struct{}),
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return Job{}, ErrRunnerStopped
	}
	r.jobs[e.job.ID] = e
	job := e.job
	r.sending.Add(1)
	r.mu.Unlock()
	defer r.sending.Done()

	select {
	case r.queue <- e:
		return job, nil
	case <-r.quit:
		r.finish(e, nil, ErrRunnerStopped)
		return r.snapshot(e), ErrRunnerStopped
	case <-ctx.Done():
		r.finish(e, nil, errors.Wrap(ctx.Err(), "queueing job"))
		return r.snapshot(e), ctx.Err()
	}
}

// Run executes fn on the calling goroutine with the runner's timeout and records it like a submitted job.
func (r *Runner) Run(ctx context.Context, kind string, fn Func) Job {
	e := &entry{
		job:  Job{ID: uuid.NewString(), Kind: kind, State: StatePending, CreatedAt: time.Now().UTC()},
		fn:   fn,
		done: make(chan struct{}),
	}
	r.mu.Lock()
	r.jobs[e.job.ID] = e
	r.mu.Unlock()

	r.executeWithContext(ctx, e)
	return r.snapshot(e)
}

func (r *Runner) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return e.job, nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-e.done:
		return r.snapshot(e), nil
	case <-ctx.Done():
		return r.snapshot(e), ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain.
// Jobs still queued once the workers exit end FAILED with ErrRunnerStopped.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.quit)
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.sending.Wait()
		r.wg.Wait()
		r.failQueued()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for jobs to finish")
	}
}

func (r *Runner) failQueued() {
	for {
		select {
		case e := <-r.queue:
			r.finish(e, nil, ErrRunnerStopped)
		default:
			return
		}
	}
}

// work runs queued jobs until quit is closed, then drains what is left in the queue.
func (r *Runner) work() {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.execute(e)
		case <-r.quit:
			for {
				select {
				case e := <-r.queue:
					r.execute(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) execute(e *entry) {
	r.executeWithContext(context.Background(), e)
}

func (r *Runner) executeWithContext(parent context.Context, e *entry) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	r.mu.Lock()
	e.job.State = StateRunning
	e.job.StartedAt = &now
	r.mu.Unlock()

	type outcome struct {
		result interface{}
		err    error
	}
	out := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				out <- outcome{err: errors.Errorf("job panicked: %v", rec)}
			}
		}()
		res, err := e.fn(ctx)
		out <- outcome{result: res, err: err}
	}()

	select {
	case o := <-out:
		if ctx.Err() == context.DeadlineExceeded {
			o.err = ErrTimeout // finished, but too late
		}
		r.finish(e, o.result, o.err)
	case <-ctx.Done():
		err := ErrTimeout
		if ctx.Err() == context.Canceled {
			err = errors.Wrap(ctx.Err(), "job cancelled")
		}
		r.finish(e, nil, err)
	}
}

func (r *Runner) finish(e *entry, result interface{}, err error) {
	now := time.Now().UTC()
	r.mu.Lock()
	e.job.FinishedAt = &now
	if err != nil {
		e.job.State = StateFailed
		e.job.Error = err.Error()
	} else {
		e.job.State = StateSucceeded
		e.job.Result = result
	}
	job := e.job
	r.prune(now)
	r.mu.Unlock()
	close(e.done)

	if err != nil {
		r.logger.Error(fmt.Sprintf("job %s (%s) failed: %v", job.ID, job.Kind, err), err)
		return
	}
	r.logger.Info(fmt.Sprintf("job %s (%s) succeeded: %v", job.ID, job.Kind, result))
}

// prune drops finished jobs older than the retention window. r.mu must be held.
func (r *Runner) prune(now time.Time) {
	if r.retention <= 0 {
		return
	}
	cutoff := now.Add(-r.retention)
	for id, e := range r.jobs {
		if e.job.FinishedAt != nil && e.job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

func (r *Runner) snapshot(e *entry) Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return e.job
}
