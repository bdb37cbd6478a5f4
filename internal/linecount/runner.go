package linecount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrRunnerClosed is returned by Submit after Close.
	ErrRunnerClosed = errors.New("linecount: runner closed")
	// ErrQueueTimeout fails a job whose deadline passed before a slot freed up.
	ErrQueueTimeout = errors.New("linecount: no free slot before the deadline")
)

// Job is one count request travelling through the Runner.
type Job struct {
	ID     string
	RepoID string
	Source Source

	TotalLines int64
	Err        error
}

// Callbacks observe a job. Either may be nil. Finished is called exactly once
// per submitted job, including when the runner shuts down before the job
// started.
type Callbacks struct {
	Started  func(Job)
	Finished func(Job)
}

// Runner executes counts in the background with bounded concurrency and a
// per-job timeout. The timeout runs from Submit, so time spent queued for a
// slot counts against it. Jobs are detached from the submitting request: a
// client that disconnects does not cancel its count.
type Runner struct {
	counter Counter
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRunner(counter Counter, concurrency int, timeout time.Duration, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		counter: counter,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues job and returns immediately.
func (r *Runner) Submit(job Job, cb Callbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}

	deadline := time.Now().Add(r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job = r.run(job, deadline, cb.Started)
		if cb.Finished != nil {
			cb.Finished(job)
		}
	}()
	return nil
}

func (r *Runner) run(job Job, deadline time.Time, started func(Job)) Job {
	ctx, cancel := context.WithDeadline(r.ctx, deadline)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		if r.ctx.Err() != nil {
			job.Err = fmt.Errorf("%w: %w", ErrRunnerClosed, err)
		} else {
			job.Err = fmt.Errorf("%w after %s: %w", ErrQueueTimeout, r.timeout, err)
			r.logger.Warn("line count not started", slog.String("jobID", job.ID), slog.String("repoID", job.RepoID), slog.String("error", job.Err.Error()))
		}
		return job
	}
	defer r.sem.Release(1)

	if started != nil {
		started(job)
	}

	start := time.Now()
	job.TotalLines, job.Err = r.counter.Count(ctx, job.Source)
	if job.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		job.Err = fmt.Errorf("timed out after %s: %w", r.timeout, job.Err)
	}

	attrs := []any{
		slog.String("jobID", job.ID),
		slog.String("repoID", job.RepoID),
		slog.Duration("duration", time.Since(start)),
	}
	if job.Err != nil {
		r.logger.Warn("line count failed", append(attrs, slog.String("error", job.Err.Error()))...)
	} else {
		r.logger.Info("line count finished", append(attrs, slog.Int64("lines", job.TotalLines))...)
	}
	return job
}

// Close stops accepting jobs, cancels running counts and waits for every
// Finished callback to return.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
