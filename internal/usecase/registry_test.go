package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
)

func noopJob(context.Context) error { return nil }

func findJob(t *testing.T, snaps []models.JobSnapshot, name string) models.JobSnapshot {
	t.Helper()
	for _, s := range snaps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("job %s not in snapshot", name)
	return models.JobSnapshot{}
}

func TestRegisterIdempotentAndConflicting(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})

	if err := r.Register("sync", time.Minute, noopJob); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("sync", time.Minute, noopJob); err != nil {
		t.Fatalf("re-register with same period should be a no-op: %v", err)
	}
	if err := r.Register("sync", 2*time.Minute, noopJob); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("conflicting period error = %v, want ErrJobConflict", err)
	}
	if n := len(r.Snapshot()); n != 1 {
		t.Fatalf("jobs = %d, want 1", n)
	}
}

func TestRegisterRejectsBadSpecs(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	cases := []struct {
		name   string
		period time.Duration
		fn     func(context.Context) error
	}{
		{"", time.Minute, noopJob},
		{"sync", 0, noopJob},
		{"sync", -time.Second, noopJob},
		{"sync", time.Minute, nil},
	}
	for _, c := range cases {
		if err := r.Register(c.name, c.period, c.fn); err == nil {
			t.Fatalf("register(%q, %v) accepted", c.name, c.period)
		}
	}
}

func TestRunDueHonorsPeriods(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	var runs atomic.Int64
	if err := r.Register("sync", 10*time.Minute, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	base := time.Now()
	if n := r.RunDue(context.Background(), base); n != 1 {
		t.Fatalf("never-run job not started, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := r.RunDue(context.Background(), base.Add(5*time.Minute)); n != 0 {
		t.Fatalf("job started %d before its period elapsed", n)
	}
	if n := r.RunDue(context.Background(), base.Add(10*time.Minute)); n != 1 {
		t.Fatalf("due job not started, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs = %d, want 2", got)
	}
}

func TestJobNeverRunsConcurrentlyWithItself(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	gate := make(chan struct{})
	var runs atomic.Int64
	if err := r.Register("slow", time.Minute, func(context.Context) error {
		runs.Add(1)
		<-gate
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	base := time.Now()
	r.RunDue(context.Background(), base)
	waitUntil(t, func() bool { return runs.Load() == 1 })

	if n := r.RunDue(context.Background(), base.Add(5*time.Minute)); n != 0 {
		t.Fatalf("overdue job started %d while still running", n)
	}

	close(gate)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := r.RunDue(context.Background(), base.Add(10*time.Minute)); n != 1 {
		t.Fatalf("finished job not restarted, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestJobFailureStaysOnTheJob(t *testing.T) {
	state := newFakeJobState(nil)
	r := NewRegistry(state, testLogger(t), nopMetrics{})
	if err := r.Register("news", time.Minute, func(context.Context) error {
		return errors.New("feed down")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	now := time.Now()
	if n := r.RunDue(context.Background(), now); n != 1 {
		t.Fatalf("job not started, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	snap := findJob(t, r.Snapshot(), "news")
	if snap.Runs != 1 || snap.Failures != 1 {
		t.Fatalf("runs=%d failures=%d, want 1/1", snap.Runs, snap.Failures)
	}
	if snap.LastError != "feed down" {
		t.Fatalf("last error %q", snap.LastError)
	}
	if snap.LastErrorAt == nil {
		t.Fatalf("last error time not recorded")
	}
	if snap.Running {
		t.Fatalf("job still marked running after failure")
	}

	// last_run_at persists at invocation start, failure or not
	if saved, ok := state.savedAt("news"); !ok || !saved.Equal(now) {
		t.Fatalf("persisted last_run_at = %v ok=%v, want %v", saved, ok, now)
	}
}

func TestJobPanicIsRecovered(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	if err := r.Register("flaky", time.Minute, func(context.Context) error {
		panic("index out of range")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	base := time.Now()
	r.RunDue(context.Background(), base)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	snap := findJob(t, r.Snapshot(), "flaky")
	if snap.Failures != 1 || !strings.Contains(snap.LastError, "panic") {
		t.Fatalf("failures=%d last_error=%q", snap.Failures, snap.LastError)
	}

	// the registry keeps driving a panicking job
	if n := r.RunDue(context.Background(), base.Add(2*time.Minute)); n != 1 {
		t.Fatalf("panicked job not restarted, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRunAllIgnoresEligibility(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	var aRuns, bRuns atomic.Int64
	if err := r.Register("a", time.Hour, func(context.Context) error { aRuns.Add(1); return nil }); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register("b", time.Hour, func(context.Context) error { bRuns.Add(1); return nil }); err != nil {
		t.Fatalf("register b: %v", err)
	}

	base := time.Now()
	if n := r.RunDue(context.Background(), base); n != 2 {
		t.Fatalf("first pass started %d, want 2", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := r.RunDue(context.Background(), base.Add(time.Second)); n != 0 {
		t.Fatalf("run due started %d inside the period", n)
	}
	if n := r.RunAll(context.Background(), base.Add(time.Second)); n != 2 {
		t.Fatalf("run all started %d, want 2", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if aRuns.Load() != 2 || bRuns.Load() != 2 {
		t.Fatalf("runs a=%d b=%d, want 2/2", aRuns.Load(), bRuns.Load())
	}
}

func TestRestoreSeedsOnlyRegisteredIdleJobs(t *testing.T) {
	t1 := time.Now().Add(-30 * time.Minute)
	state := newFakeJobState(map[string]time.Time{
		"a":     t1,
		"b":     time.Now().Add(-2 * time.Hour),
		"ghost": time.Now().Add(-time.Minute),
	})
	r := NewRegistry(state, testLogger(t), nopMetrics{})

	if err := r.Register("b", time.Hour, noopJob); err != nil {
		t.Fatalf("register b: %v", err)
	}
	ranAt := time.Now()
	r.RunAll(context.Background(), ranAt)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := r.Register("a", time.Hour, noopJob); err != nil {
		t.Fatalf("register a: %v", err)
	}

	r.Restore(context.Background())

	snaps := r.Snapshot()
	if n := len(snaps); n != 2 {
		t.Fatalf("snapshot has %d jobs, unknown names must not appear", n)
	}
	a := findJob(t, snaps, "a")
	if a.LastRunAt == nil || !a.LastRunAt.Equal(t1) {
		t.Fatalf("a last_run_at = %v, want seeded %v", a.LastRunAt, t1)
	}
	b := findJob(t, snaps, "b")
	if b.LastRunAt == nil || !b.LastRunAt.Equal(ranAt) {
		t.Fatalf("b last_run_at = %v, restore must not rewind a job that ran", b.LastRunAt)
	}

	// the seeded stamp keeps the job off the due list until its period passes
	if n := r.RunDue(context.Background(), time.Now()); n != 0 {
		t.Fatalf("restored jobs started %d, want 0", n)
	}
}

func TestRestoreLoadFailureRunsImmediately(t *testing.T) {
	state := newFakeJobState(nil)
	state.loadErr = errors.New("redis down")
	r := NewRegistry(state, testLogger(t), nopMetrics{})
	if err := r.Register("a", time.Hour, noopJob); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Restore(context.Background())
	if n := r.RunDue(context.Background(), time.Now()); n != 1 {
		t.Fatalf("job not run after failed restore, got %d", n)
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	r := NewRegistry(nil, testLogger(t), nopMetrics{})
	gate := make(chan struct{})
	if err := r.Register("slow", time.Minute, func(context.Context) error {
		<-gate
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.RunDue(context.Background(), time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Fatalf("wait should give up while a job is still running")
	}

	close(gate)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait after gate: %v", err)
	}
}
