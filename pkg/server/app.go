package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarkWatch/internal/domain/models"
	"MarkWatch/internal/usecase"
	pkgcache "MarkWatch/pkg/cache"
	pkgch "MarkWatch/pkg/clickhouse"
	"MarkWatch/pkg/config"
	xhttp "MarkWatch/pkg/http"
	pkgkafka "MarkWatch/pkg/kafka"
	applogger "MarkWatch/pkg/logger"
	"MarkWatch/pkg/queue"
)

// App encapsulates the entire application lifecycle: the mark-price
// collector, the Kafka history consumer, the fetch work queue, the HTTP
// control plane, and the scheduler itself.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	ticks      *usecase.PriceTicksHandler
	workQueue  *queue.RedisQueue
	scheduler  *usecase.Scheduler
	registry   *usecase.Registry
	guard      *usecase.AnalysisGuard
	handler    xhttp.Handler
	chClient   *pkgch.Client
	redisCache *pkgcache.RedisCache
	httpServer *xhttp.Server

	// TickProc is set by DI so shutdown can close the Kafka producer.
	TickProc *usecase.TickProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	ticks *usecase.PriceTicksHandler,
	workQueue *queue.RedisQueue,
	scheduler *usecase.Scheduler,
	registry *usecase.Registry,
	guard *usecase.AnalysisGuard,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	redisCache *pkgcache.RedisCache,
) *App {
	return &App{
		cfg:        cfg,
		logger:     lgr,
		collector:  collector,
		consumer:   consumer,
		ticks:      ticks,
		workQueue:  workQueue,
		scheduler:  scheduler,
		registry:   registry,
		guard:      guard,
		handler:    handler,
		chClient:   chClient,
		redisCache: redisCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore the persisted analysis stamp before anything can evaluate
	// staleness; a lost stamp would read as "never analyzed".
	a.guard.Restore(ctx)

	if err := a.workQueue.Start(); err != nil {
		return fmt.Errorf("work queue: %w", err)
	}

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("price stream start failed", applogger.Error(err))
		}
	}()
	a.logger.Info("mark price collector started",
		applogger.Strings("symbols", a.cfg.Scheduler.Assets))

	if a.consumer != nil && a.ticks != nil {
		a.consumer.RegisterHandler(a.ticks)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.ticks.Topic()))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
		xhttp.WithServerLogger(a.logger),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithHTTPMetrics(a.logger, time.Second))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	if a.cfg.Scheduler.Autostart {
		// Zero config: file defaults fill everything in.
		if _, err := a.scheduler.Start(ctx, models.RunConfig{}); err != nil {
			a.logger.Error("scheduler autostart failed", applogger.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, gives in-flight work the shutdown window,
// then closes infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	a.scheduler.Stop()

	if err := a.collector.Shutdown(ctx); err != nil {
		a.logger.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.workQueue.Stop(shutdownCtx); err != nil {
		a.logger.Warn("work queue stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.registry.Wait(shutdownCtx); err != nil {
		a.logger.Warn("jobs still in flight at shutdown", applogger.Error(err))
	}

	// Flush aggregated logs while the Kafka producer is still open.
	a.logger.RemoveCollector()

	if a.TickProc != nil {
		a.TickProc.Close()
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
