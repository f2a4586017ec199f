package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarkWatch/internal/domain/models"
	"MarkWatch/pkg/queue"
)

type fakeFetcher struct{ items []models.NewsItem }

func (f *fakeFetcher) FetchSince(context.Context, models.NewsSource, time.Time) ([]models.NewsItem, error) {
	return f.items, nil
}

type fakeNewsStore struct {
	mu       sync.Mutex
	inserted []models.NewsItem
}

func (f *fakeNewsStore) Insert(_ context.Context, items []models.NewsItem) error {
	f.mu.Lock()
	f.inserted = append(f.inserted, items...)
	f.mu.Unlock()
	return nil
}

func (f *fakeNewsStore) Latest(context.Context, models.NewsSource, int) ([]models.NewsItem, error) {
	return nil, nil
}

func (f *fakeNewsStore) NewestPublishedAt(context.Context, models.NewsSource) (time.Time, error) {
	return time.Time{}, nil
}

type fakePipeline struct{}

func (fakePipeline) Analyze(context.Context, *models.RoundContext) (*models.TradePlan, error) {
	return &models.TradePlan{}, nil
}

func (fakePipeline) Longform(context.Context, []string) (*models.LongformReport, error) {
	return &models.LongformReport{Content: "daily", GeneratedAt: time.Now()}, nil
}

type memBytes struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemBytes() *memBytes { return &memBytes{m: map[string][]byte{}} }

func (c *memBytes) GetBytes(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memBytes) SetBytes(key string, b []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = b
	return nil
}

type schedEnv struct {
	sched   *Scheduler
	runner  *stubRunner
	guard   *AnalysisGuard
	monitor *MarketMonitor
}

func newSchedEnv(t *testing.T) *schedEnv {
	t.Helper()
	lgr := testLogger(t)
	runner := &stubRunner{}

	// a recent stamp keeps the monitor's catch-up tick from racing the
	// catch-up round with a stale trigger of its own
	stamp := &fakeStamp{loaded: time.Now()}
	guard := NewAnalysisGuard(runner, stamp, nil, lgr, nopMetrics{})
	guard.Restore(context.Background())

	monitor := NewMarketMonitor(newFakeBands(nil), &fakePrices{}, guard, nil, lgr, nopMetrics{})
	registry := NewRegistry(newFakeJobState(nil), lgr, nopMetrics{})

	// never started, so enqueues fail fast without a redis server
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{}, nil, queue.ModeProducerOnly)
	market := NewMarketSync(q, nil, 0, lgr, nopMetrics{})

	news := NewNewsSync(&fakeFetcher{}, &fakeNewsStore{}, lgr, nopMetrics{})
	longform := NewLongformRefresher(fakePipeline{}, newMemBytes(), time.Hour, lgr, nopMetrics{})

	conf := SchedulerConfig{
		Defaults:         testRunConfig(),
		MonitorPeriod:    time.Minute,
		MarketDataPeriod: 15 * time.Minute,
		NewsflashPeriod:  15 * time.Minute,
		ArticlePeriod:    time.Hour,
		LongformPeriod:   24 * time.Hour,
	}
	sched := NewScheduler(registry, guard, monitor, market, news, longform, conf, nil, lgr, nopMetrics{})
	return &schedEnv{sched: sched, runner: runner, guard: guard, monitor: monitor}
}

func TestStartRegistersJobsAndRunsCatchUp(t *testing.T) {
	env := newSchedEnv(t)
	st, err := env.sched.Start(context.Background(), models.RunConfig{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer env.sched.Stop()

	if !st.Running {
		t.Fatalf("scheduler not running after start")
	}
	names := map[string]bool{}
	for _, j := range st.Jobs {
		names[j.Name] = true
	}
	for _, want := range []string{JobMarketMonitor, JobMarketDataSync, JobNewsflashSync, JobArticleSync, JobLongformRefresh} {
		if !names[want] {
			t.Fatalf("job %s not registered", want)
		}
	}

	// catch-up pass: every job runs once, exactly one round reaches the runner
	waitUntil(t, func() bool {
		for _, j := range env.sched.Status().Jobs {
			if j.Runs < 1 || j.Running {
				return false
			}
		}
		return env.runner.count() == 1
	})
	if req := env.runner.last(); req.Reason != models.ReasonCatchUp {
		t.Fatalf("catch-up round reason = %s", req.Reason)
	}

	// the market sync job failed (no redis behind the queue) and that
	// failure stayed on the job instead of taking the scheduler down
	syncJob := findJob(t, env.sched.Status().Jobs, JobMarketDataSync)
	if syncJob.Failures != 1 || syncJob.LastError == "" {
		t.Fatalf("market sync failures=%d last_error=%q", syncJob.Failures, syncJob.LastError)
	}
	if !env.sched.Status().Running {
		t.Fatalf("scheduler stopped by a failing job")
	}
}

func TestStartWhileRunningReconfiguresInPlace(t *testing.T) {
	env := newSchedEnv(t)
	if _, err := env.sched.Start(context.Background(), models.RunConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer env.sched.Stop()
	waitUntil(t, func() bool { return env.runner.count() == 1 && !env.guard.Status().InFlight })

	st, err := env.sched.Start(context.Background(), models.RunConfig{
		Assets:  []string{"solusdt"},
		Capital: 2500,
	})
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if !st.Running {
		t.Fatalf("reconfigure flipped the scheduler off")
	}
	if st.Config == nil || st.Config.Capital != 2500 {
		t.Fatalf("config %+v", st.Config)
	}
	if got := st.Config.Assets; len(got) != 1 || got[0] != "SOLUSDT" {
		t.Fatalf("assets %v, want normalized SOLUSDT", got)
	}
	if got := env.monitor.config().Assets; len(got) != 1 || got[0] != "SOLUSDT" {
		t.Fatalf("monitor assets %v, reconfigure did not reach the monitor", got)
	}

	// no second catch-up round
	time.Sleep(30 * time.Millisecond)
	if n := env.runner.count(); n != 1 {
		t.Fatalf("rounds = %d, reconfigure replayed the catch-up pass", n)
	}
}

func TestStopKeepsJobBookkeeping(t *testing.T) {
	env := newSchedEnv(t)
	if _, err := env.sched.Start(context.Background(), models.RunConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, func() bool {
		for _, j := range env.sched.Status().Jobs {
			if j.Runs < 1 || j.Running {
				return false
			}
		}
		return !env.guard.Status().InFlight
	})

	st := env.sched.Stop()
	if st.Running {
		t.Fatalf("still running after stop")
	}
	if n := len(st.Jobs); n != 5 {
		t.Fatalf("stop dropped job registrations, have %d", n)
	}
	for _, j := range st.Jobs {
		if j.Runs < 1 {
			t.Fatalf("job %s lost its run count", j.Name)
		}
	}

	// stopping twice is a no-op
	if st := env.sched.Stop(); st.Running {
		t.Fatalf("second stop reports running")
	}

	// restart: same registrations, no catch-up replay
	if _, err := env.sched.Start(context.Background(), models.RunConfig{}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer env.sched.Stop()
	time.Sleep(30 * time.Millisecond)
	if n := env.runner.count(); n != 1 {
		t.Fatalf("rounds = %d, restart replayed the catch-up pass", n)
	}
	if n := len(env.sched.Status().Jobs); n != 5 {
		t.Fatalf("jobs after restart = %d", n)
	}
}

func TestStartValidationLeavesStateUntouched(t *testing.T) {
	env := newSchedEnv(t)
	if _, err := env.sched.Start(context.Background(), models.RunConfig{Capital: -1}); err == nil {
		t.Fatalf("negative capital accepted")
	}

	st := env.sched.Status()
	if st.Running {
		t.Fatalf("invalid start left the scheduler running")
	}
	if n := len(st.Jobs); n != 0 {
		t.Fatalf("invalid start registered %d jobs", n)
	}
	if n := env.runner.count(); n != 0 {
		t.Fatalf("invalid start triggered %d rounds", n)
	}
}

func TestRunOnceLeavesSchedulerStopped(t *testing.T) {
	env := newSchedEnv(t)
	res, err := env.sched.RunOnce(context.Background(), models.RunConfig{})
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !res.Accepted || res.Record == nil {
		t.Fatalf("result %+v", res)
	}
	if res.Record.Status != models.RoundCompleted {
		t.Fatalf("status = %s", res.Record.Status)
	}
	if req := env.runner.last(); req.Reason != models.ReasonManual {
		t.Fatalf("reason = %s, want manual", req.Reason)
	}
	if env.sched.Status().Running {
		t.Fatalf("run-once flipped the scheduler on")
	}
}

func TestRunOnceRejectedWhileRoundInFlight(t *testing.T) {
	env := newSchedEnv(t)
	gate := make(chan struct{})
	env.runner.gate = gate

	done := make(chan *models.RoundResult, 1)
	go func() {
		r, err := env.sched.RunOnce(context.Background(), models.RunConfig{})
		if err != nil {
			t.Errorf("run once: %v", err)
		}
		done <- r
	}()
	waitUntil(t, func() bool { return env.runner.count() == 1 })

	res, err := env.sched.RunOnce(context.Background(), models.RunConfig{})
	if err != nil {
		t.Fatalf("second run once: %v", err)
	}
	if res.Accepted {
		t.Fatalf("second round accepted while one is in flight")
	}

	close(gate)
	if r := <-done; !r.Accepted {
		t.Fatalf("first round rejected")
	}
}

func TestRunOnceValidatesConfig(t *testing.T) {
	env := newSchedEnv(t)
	if _, err := env.sched.RunOnce(context.Background(), models.RunConfig{
		LeverageMin: 7,
		LeverageMax: 2,
	}); err == nil {
		t.Fatalf("inverted leverage range accepted")
	}
	if n := env.runner.count(); n != 0 {
		t.Fatalf("invalid run-once reached the runner %d times", n)
	}
}
