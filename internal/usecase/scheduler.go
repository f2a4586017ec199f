package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	mid "MarkWatch/internal/middleware"
	"MarkWatch/pkg/logger"
)

// Registered job names.
const (
	JobMarketMonitor   = "market_monitor"
	JobMarketDataSync  = "market_data_sync"
	JobNewsflashSync   = "newsflash_sync"
	JobArticleSync     = "article_sync"
	JobLongformRefresh = "longform_refresh"
)

// driveTick is how often the run loop checks the registry for due jobs.
const driveTick = 5 * time.Second

// SchedulerConfig seeds defaults and job periods from file config.
type SchedulerConfig struct {
	Defaults models.RunConfig

	MonitorPeriod    time.Duration
	MarketDataPeriod time.Duration
	NewsflashPeriod  time.Duration
	ArticlePeriod    time.Duration
	LongformPeriod   time.Duration
}

// Scheduler is the lifecycle controller: two states, explicit runtime
// configuration, an idempotent start, and a stop that preserves job
// bookkeeping. Start on a running scheduler reconfigures in place and
// never replays the catch-up pass.
type Scheduler struct {
	registry *Registry
	guard    *AnalysisGuard
	monitor  *MarketMonitor
	market   *MarketSync
	news     *NewsSync
	longform *LongformRefresher

	conf SchedulerConfig

	mu          sync.Mutex
	running     bool
	startedAt   time.Time
	lastTickAt  time.Time
	cfg         models.RunConfig
	stopCh      chan struct{}
	catchUpDone bool

	feed    *mid.EventFeed
	logger  *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

func NewScheduler(
	registry *Registry,
	guard *AnalysisGuard,
	monitor *MarketMonitor,
	market *MarketSync,
	news *NewsSync,
	longform *LongformRefresher,
	conf SchedulerConfig,
	feed *mid.EventFeed,
	lgr *logger.Logger,
	metrics drepo.Metrics,
) *Scheduler {
	return &Scheduler{
		registry: registry,
		guard:    guard,
		monitor:  monitor,
		market:   market,
		news:     news,
		longform: longform,
		conf:     conf,
		feed:     feed,
		logger:   lgr,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Start brings the scheduler up with cfg, or reconfigures a running one in
// place. Validation failures return before any state changes.
func (s *Scheduler) Start(ctx context.Context, cfg models.RunConfig) (*models.SchedulerStatus, error) {
	merged := cfg.WithDefaults(s.conf.Defaults)
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.cfg = merged
		s.mu.Unlock()

		s.monitor.SetConfig(merged)
		s.logger.Info("scheduler reconfigured in place",
			logger.Strings("assets", merged.Assets),
			logger.Float64("capital", merged.Capital))
		s.publish("reconfigured", merged)
		return s.Status(), nil
	}

	if err := s.registerJobs(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	s.cfg = merged
	s.running = true
	s.startedAt = s.now()
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	first := !s.catchUpDone
	s.catchUpDone = true
	s.mu.Unlock()

	s.monitor.SetConfig(merged)
	s.metrics.SetRunning(true)

	// Jobs and rounds outlive the request that started the scheduler.
	runCtx := context.WithoutCancel(ctx)
	if first {
		s.registry.Restore(runCtx)
		s.logger.Info("catch-up pass: forcing one round and running all jobs once")
		s.guard.RequestRound(runCtx, models.RoundRequest{
			Reason: models.ReasonCatchUp,
			Detail: "initial configuration",
			Assets: merged.Assets,
			Config: merged,
		})
		s.registry.RunAll(runCtx, s.now())
	}
	go s.loop(runCtx, stopCh)

	s.logger.Info("scheduler started",
		logger.Strings("assets", merged.Assets),
		logger.Bool("catch_up", first))
	s.publish("started", merged)
	return s.Status(), nil
}

// Stop halts the tick loop. Job registrations and last_run_at survive, and
// anything already in flight finishes on its own.
func (s *Scheduler) Stop() *models.SchedulerStatus {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return s.Status()
	}
	close(s.stopCh)
	s.stopCh = nil
	s.running = false
	s.mu.Unlock()

	s.metrics.SetRunning(false)
	s.logger.Info("scheduler stopped")
	s.publish("stopped", models.RunConfig{})
	return s.Status()
}

// RunOnce executes a single analysis round synchronously, scheduler state
// untouched. The guard's single-flight rule still applies.
func (s *Scheduler) RunOnce(ctx context.Context, cfg models.RunConfig) (*models.RoundResult, error) {
	merged := cfg.WithDefaults(s.conf.Defaults)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return s.guard.Run(ctx, models.RoundRequest{
		Reason: models.ReasonManual,
		Detail: "run-once",
		Assets: merged.Assets,
		Config: merged,
	}), nil
}

// Status assembles the read-only snapshot.
func (s *Scheduler) Status() *models.SchedulerStatus {
	s.mu.Lock()
	st := &models.SchedulerStatus{Running: s.running}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.lastTickAt.IsZero() {
		t := s.lastTickAt
		st.LastTickAt = &t
	}
	if len(s.cfg.Assets) > 0 {
		cfg := s.cfg
		st.Config = &cfg
	}
	s.mu.Unlock()

	st.Jobs = s.registry.Snapshot()
	st.Analysis = s.guard.Status()
	return st
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(driveTick)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			s.lastTickAt = now
			s.mu.Unlock()
			s.registry.RunDue(ctx, now)
		}
	}
}

// registerJobs is idempotent: identical (name, period) pairs are no-ops,
// so a stop/start cycle keeps the original bookkeeping.
func (s *Scheduler) registerJobs() error {
	type jobSpec struct {
		name   string
		period time.Duration
		fn     func(context.Context) error
	}
	jobs := []jobSpec{
		{JobMarketMonitor, s.conf.MonitorPeriod, s.monitor.Tick},
		{JobMarketDataSync, s.conf.MarketDataPeriod, func(ctx context.Context) error {
			return s.market.Run(ctx, s.snapshotConfig().Assets)
		}},
		{JobNewsflashSync, s.conf.NewsflashPeriod, func(ctx context.Context) error {
			return s.news.Run(ctx, models.NewsFlash)
		}},
		{JobArticleSync, s.conf.ArticlePeriod, func(ctx context.Context) error {
			return s.news.Run(ctx, models.NewsArticle)
		}},
		{JobLongformRefresh, s.conf.LongformPeriod, func(ctx context.Context) error {
			return s.longform.Refresh(ctx, s.snapshotConfig().Assets)
		}},
	}
	for _, j := range jobs {
		if err := s.registry.Register(j.name, j.period, j.fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) snapshotConfig() models.RunConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) publish(what string, cfg models.RunConfig) {
	if s.feed == nil {
		return
	}
	var fields map[string]string
	if len(cfg.Assets) > 0 {
		fields = map[string]string{"assets": fmt.Sprintf("%v", cfg.Assets)}
	}
	s.feed.Publish("scheduler", what, fields)
}
