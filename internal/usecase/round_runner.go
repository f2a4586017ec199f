package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	domsvc "MarkWatch/internal/domain/service"
	"MarkWatch/internal/services/briefing"
	"MarkWatch/pkg/logger"
)

// RoundRunner owns one analysis round end to end: build the briefing, call
// the pipeline, apply the trade plan, persist the record and publish the
// round event. Every failure path still produces a persisted record; the
// guard releases and stamps regardless.
type RoundRunner struct {
	briefing *briefing.Builder
	pipeline domsvc.AnalysisPipeline
	executor *TradeExecutor
	rounds   drepo.RoundStore
	events   drepo.RoundPublisher

	logger  *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

func NewRoundRunner(
	b *briefing.Builder,
	pipeline domsvc.AnalysisPipeline,
	executor *TradeExecutor,
	rounds drepo.RoundStore,
	events drepo.RoundPublisher,
	lgr *logger.Logger,
	metrics drepo.Metrics,
) *RoundRunner {
	return &RoundRunner{
		briefing: b,
		pipeline: pipeline,
		executor: executor,
		rounds:   rounds,
		events:   events,
		logger:   lgr,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (r *RoundRunner) Run(ctx context.Context, req models.RoundRequest) (*models.RoundRecord, error) {
	rec := &models.RoundRecord{
		ID:        uuid.NewString(),
		Reason:    req.Reason,
		Detail:    req.Detail,
		Assets:    req.Assets,
		StartedAt: r.now(),
		Status:    models.RoundCompleted,
	}

	rc, err := r.briefing.Build(ctx, req)
	if err != nil {
		return r.fail(ctx, rec, "briefing", err), nil
	}

	start := r.now()
	plan, err := r.pipeline.Analyze(ctx, rc)
	if err != nil {
		return r.fail(ctx, rec, "pipeline", err), nil
	}
	r.metrics.RecordLatency("pipeline_analyze", r.now().Sub(start).Seconds())
	rec.Plan = plan

	if err := r.executor.Apply(ctx, req.Config, plan); err != nil {
		return r.fail(ctx, rec, "execute", err), nil
	}

	rec.FinishedAt = r.now()
	r.persist(ctx, rec)
	r.logger.Info("round completed",
		logger.String("round_id", rec.ID),
		logger.Int("decisions", len(plan.Decisions)))
	return rec, nil
}

func (r *RoundRunner) fail(ctx context.Context, rec *models.RoundRecord, stage string, err error) *models.RoundRecord {
	rec.Status = models.RoundFailed
	rec.Error = stage + ": " + err.Error()
	rec.FinishedAt = r.now()
	r.metrics.RecordError("round_" + stage)
	r.logger.Error("round failed",
		logger.String("round_id", rec.ID),
		logger.String("stage", stage),
		logger.Error(err))
	r.persist(ctx, rec)
	return rec
}

// persist appends the record and emits the round event. Neither failure
// aborts the round; the record lives on in the guard snapshot and logs.
func (r *RoundRunner) persist(ctx context.Context, rec *models.RoundRecord) {
	if r.rounds != nil {
		if err := r.rounds.Insert(ctx, rec); err != nil {
			r.metrics.RecordError("round_store")
			r.logger.Error("persist round failed",
				logger.String("round_id", rec.ID), logger.Error(err))
		}
	}
	if r.events != nil {
		if err := r.events.PublishRound(ctx, rec); err != nil {
			r.metrics.RecordError("round_publish")
			r.logger.Warn("publish round event failed",
				logger.String("round_id", rec.ID), logger.Error(err))
		}
	}
}

var _ RoundExecutor = (*RoundRunner)(nil)
