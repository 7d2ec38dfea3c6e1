// Package schedule runs background jobs such as price drift and periodic tax
// on a fixed interval without letting a job overlap itself.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrBusy = errors.New("previous run still active")

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error

	running atomic.Bool
}

// TryRun runs the job now unless a previous run has not finished, in which
// case it returns ErrBusy without running.
func (j *Job) TryRun(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer j.running.Store(false)
	return j.Run(ctx)
}

type Runner struct {
	log  *slog.Logger
	jobs []*Job
}

func NewRunner(logger *slog.Logger, jobs ...*Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{log: logger, jobs: jobs}
}

// Start runs every job on its own ticker until ctx is cancelled. With
// runAtStart each job also runs once immediately. Start blocks until ctx is
// done and every run it started has returned.
func (r *Runner) Start(ctx context.Context, runAtStart bool) {
	var loops, runs sync.WaitGroup
	for _, job := range r.jobs {
		loops.Go(func() { r.loop(ctx, job, runAtStart, &runs) })
	}
	loops.Wait()
	runs.Wait()
}

// RunOnce runs every job a single time and returns the joined failures.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range r.jobs {
		if err := r.fire(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) loop(ctx context.Context, job *Job, runAtStart bool, runs *sync.WaitGroup) {
	if job.Every <= 0 {
		r.log.Info("job disabled", "job", job.Name)
		return
	}
	r.log.Info("job scheduled", "job", job.Name, "every", job.Every.String())
	if runAtStart {
		runs.Go(func() { r.fire(ctx, job) })
	}

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("job stopped", "job", job.Name)
			return
		case <-ticker.C:
			// A slow run must not block the ticker, otherwise ticks queue up.
			runs.Go(func() { r.fire(ctx, job) })
		}
	}
}

func (r *Runner) fire(ctx context.Context, job *Job) error {
	start := time.Now()
	err := job.TryRun(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		r.log.Warn("job skipped, previous run still active", "job", job.Name)
	case err != nil:
		r.log.Error("job failed", "job", job.Name, "err", err)
	default:
		r.log.Info("job complete", "job", job.Name, "took", time.Since(start).String())
	}
	return err
}
