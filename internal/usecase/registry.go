package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/pkg/logger"
)

// ErrJobConflict is returned when a job name is re-registered with a
// different period. Identical (name, period) registrations are no-ops.
var ErrJobConflict = errors.New("job already registered with different period")

type jobEntry struct {
	name        string
	period      time.Duration
	fn          func(context.Context) error
	lastRunAt   time.Time
	running     bool
	runs        int64
	failures    int64
	lastError   string
	lastErrorAt time.Time
}

// Registry holds the interval jobs driven by the scheduler tick. Each job
// runs in its own goroutine, is never self-concurrent, and its failures
// stay on the job state instead of propagating.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*jobEntry
	order []string
	wg    sync.WaitGroup

	state   drepo.JobStateStore
	logger  *logger.Logger
	metrics drepo.Metrics
}

func NewRegistry(state drepo.JobStateStore, lgr *logger.Logger, metrics drepo.Metrics) *Registry {
	return &Registry{
		jobs:    make(map[string]*jobEntry),
		state:   state,
		logger:  lgr,
		metrics: metrics,
	}
}

// Restore seeds last_run_at for already-registered jobs from the state
// store. A load failure degrades to run-immediately, never to an error.
func (r *Registry) Restore(ctx context.Context) {
	if r.state == nil {
		return
	}
	last, err := r.state.LoadLastRuns(ctx)
	if err != nil {
		r.logger.Warn("job state restore failed, jobs will run immediately", logger.Error(err))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range last {
		if e, ok := r.jobs[name]; ok && e.lastRunAt.IsZero() {
			e.lastRunAt = t
		}
	}
}

// Register adds a job. Registering the same (name, period) again is
// idempotent; the same name with a different period is a conflict.
func (r *Registry) Register(name string, period time.Duration, fn func(context.Context) error) error {
	if name == "" {
		return fmt.Errorf("register: empty job name")
	}
	if period <= 0 {
		return fmt.Errorf("register %s: period must be positive, got %v", name, period)
	}
	if fn == nil {
		return fmt.Errorf("register %s: nil callable", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.jobs[name]; ok {
		if e.period == period {
			return nil
		}
		return fmt.Errorf("register %s: %w (have %v, got %v)", name, ErrJobConflict, e.period, period)
	}
	r.jobs[name] = &jobEntry{name: name, period: period, fn: fn}
	r.order = append(r.order, name)
	r.logger.Info("job registered", logger.String("job", name), logger.Duration("period", period))
	return nil
}

// RunDue starts every eligible job: not currently running, and either never
// run or past its period as of now. last_run_at moves to now at invocation
// start regardless of how the run ends. Returns the number started.
func (r *Registry) RunDue(ctx context.Context, now time.Time) int {
	return r.start(ctx, now, false)
}

// RunAll starts every registered job that is not already running, ignoring
// eligibility. Used by the scheduler's catch-up pass.
func (r *Registry) RunAll(ctx context.Context, now time.Time) int {
	return r.start(ctx, now, true)
}

func (r *Registry) start(ctx context.Context, now time.Time, force bool) int {
	r.mu.Lock()
	var due []*jobEntry
	for _, name := range r.order {
		e := r.jobs[name]
		if e.running {
			continue
		}
		if !force && !e.lastRunAt.IsZero() && now.Sub(e.lastRunAt) < e.period {
			continue
		}
		e.running = true
		e.lastRunAt = now
		e.runs++
		due = append(due, e)
	}
	r.mu.Unlock()

	for _, e := range due {
		r.wg.Add(1)
		go r.runJob(ctx, e, now)
	}
	return len(due)
}

func (r *Registry) runJob(ctx context.Context, e *jobEntry, startedAt time.Time) {
	defer r.wg.Done()

	if r.state != nil {
		if err := r.state.SaveLastRun(ctx, e.name, startedAt); err != nil {
			r.logger.Warn("persist job last_run_at failed",
				logger.String("job", e.name), logger.Error(err))
		}
	}

	var runErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				runErr = fmt.Errorf("panic: %v", rec)
			}
		}()
		runErr = e.fn(ctx)
	}()

	elapsed := time.Since(startedAt)
	status := "ok"
	if runErr != nil {
		status = "error"
	}
	r.metrics.RecordJobRun(e.name, status, elapsed.Seconds())

	r.mu.Lock()
	e.running = false
	if runErr != nil {
		e.failures++
		e.lastError = runErr.Error()
		e.lastErrorAt = time.Now()
	}
	r.mu.Unlock()

	if runErr != nil {
		r.logger.Error("job run failed",
			logger.String("job", e.name),
			logger.Duration("elapsed", elapsed),
			logger.Error(runErr))
		return
	}
	r.logger.Debug("job run finished",
		logger.String("job", e.name), logger.Duration("elapsed", elapsed))
}

// Snapshot returns the read-only view of all jobs in registration order.
func (r *Registry) Snapshot() []models.JobSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.JobSnapshot, 0, len(r.order))
	for _, name := range r.order {
		e := r.jobs[name]
		s := models.JobSnapshot{
			Name:          e.name,
			PeriodSeconds: int64(e.period / time.Second),
			Running:       e.running,
			Runs:          e.runs,
			Failures:      e.failures,
			LastError:     e.lastError,
		}
		if !e.lastRunAt.IsZero() {
			t := e.lastRunAt
			s.LastRunAt = &t
			due := e.lastRunAt.Add(e.period)
			s.NextDueAt = &due
		}
		if !e.lastErrorAt.IsZero() {
			t := e.lastErrorAt
			s.LastErrorAt = &t
		}
		out = append(out, s)
	}
	return out
}

// Wait blocks until in-flight job goroutines finish or ctx expires.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
