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

// RoundExecutor runs one analysis round end to end and returns its record.
// The returned record carries the outcome; err reports infrastructure
// failures where no usable record exists.
type RoundExecutor interface {
	Run(ctx context.Context, req models.RoundRequest) (*models.RoundRecord, error)
}

// AnalysisGuard is the size-1 semaphore in front of the analysis pipeline.
// Every trigger source goes through it; a request while a round is in
// flight is dropped, never queued. The completion timestamp moves forward
// exactly once per round, success or failure, after the record persists.
type AnalysisGuard struct {
	sem sync.Mutex // held for the duration of a round

	mu          sync.Mutex // guards the snapshot fields below
	inFlight    bool
	startedAt   time.Time
	completedAt time.Time
	lastReason  models.TriggerReason
	lastRoundID string
	lastError   string

	runner  RoundExecutor
	stamp   drepo.AnalysisStampStore
	feed    *mid.EventFeed
	logger  *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

func NewAnalysisGuard(runner RoundExecutor, stamp drepo.AnalysisStampStore, feed *mid.EventFeed, lgr *logger.Logger, metrics drepo.Metrics) *AnalysisGuard {
	return &AnalysisGuard{
		runner:  runner,
		stamp:   stamp,
		feed:    feed,
		logger:  lgr,
		metrics: metrics,
		now:     time.Now,
	}
}

// Restore loads the persisted completion timestamp so staleness survives
// restarts. Failures log and leave the zero value (treated as stale).
func (g *AnalysisGuard) Restore(ctx context.Context) {
	if g.stamp == nil {
		return
	}
	t, err := g.stamp.Load(ctx)
	if err != nil {
		g.logger.Warn("analysis stamp restore failed", logger.Error(err))
		return
	}
	g.mu.Lock()
	if g.completedAt.IsZero() {
		g.completedAt = t
	}
	g.mu.Unlock()
}

// RequestRound starts a round in the background if none is in flight.
// Returns false when the request was dropped because one already is.
func (g *AnalysisGuard) RequestRound(ctx context.Context, req models.RoundRequest) bool {
	if !g.sem.TryLock() {
		g.reject(req)
		return false
	}
	// Detach from the trigger's context: an in-flight round is never
	// canceled by the tick or HTTP request that started it.
	go g.execute(context.WithoutCancel(ctx), req)
	return true
}

// Run executes a round synchronously for the manual run-once path. The
// single-flight rule still applies.
func (g *AnalysisGuard) Run(ctx context.Context, req models.RoundRequest) *models.RoundResult {
	if !g.sem.TryLock() {
		g.reject(req)
		return &models.RoundResult{Accepted: false}
	}
	rec := g.execute(context.WithoutCancel(ctx), req)
	return &models.RoundResult{Accepted: true, Record: rec}
}

// execute assumes the semaphore is held and releases it on completion.
func (g *AnalysisGuard) execute(ctx context.Context, req models.RoundRequest) (rec *models.RoundRecord) {
	started := g.now()

	g.mu.Lock()
	g.inFlight = true
	g.startedAt = started
	g.lastReason = req.Reason
	g.mu.Unlock()

	g.logger.Info("analysis round started",
		logger.String("reason", string(req.Reason)),
		logger.String("detail", req.Detail),
		logger.Strings("assets", req.Assets))
	g.publish("started", req, "")

	defer func() {
		if r := recover(); r != nil {
			g.metrics.RecordError("round_panic")
			g.logger.Error("analysis round panicked", logger.Any("panic", r),
				logger.String("reason", string(req.Reason)))
			if rec == nil {
				rec = &models.RoundRecord{
					Reason:    req.Reason,
					Detail:    req.Detail,
					Assets:    req.Assets,
					StartedAt: started,
					Status:    models.RoundFailed,
					Error:     fmt.Sprintf("panic: %v", r),
				}
			}
		}
		g.finish(ctx, req, rec, started)
	}()

	var err error
	rec, err = g.runner.Run(ctx, req)
	if err != nil && rec == nil {
		rec = &models.RoundRecord{
			Reason:    req.Reason,
			Detail:    req.Detail,
			Assets:    req.Assets,
			StartedAt: started,
			Status:    models.RoundFailed,
			Error:     err.Error(),
		}
	}
	return rec
}

// finish stamps completion and releases the semaphore. Runs exactly once
// per round, for failed rounds too, so staleness measures the last attempt.
func (g *AnalysisGuard) finish(ctx context.Context, req models.RoundRequest, rec *models.RoundRecord, started time.Time) {
	completed := g.now()

	status := models.RoundFailed
	errText := ""
	roundID := ""
	if rec != nil {
		status = rec.Status
		errText = rec.Error
		roundID = rec.ID
		if rec.FinishedAt.IsZero() {
			rec.FinishedAt = completed
		}
	}

	g.mu.Lock()
	g.inFlight = false
	if completed.After(g.completedAt) {
		g.completedAt = completed
	}
	g.lastRoundID = roundID
	g.lastError = errText
	g.mu.Unlock()

	if g.stamp != nil {
		if err := g.stamp.Save(ctx, completed); err != nil {
			g.logger.Warn("persist analysis stamp failed", logger.Error(err))
		}
	}

	elapsed := completed.Sub(started)
	g.metrics.RecordRound(string(status), elapsed.Seconds())
	g.logger.Info("analysis round finished",
		logger.String("status", string(status)),
		logger.String("round_id", roundID),
		logger.Duration("elapsed", elapsed))
	g.publish(string(status), req, roundID)

	g.sem.Unlock()
}

func (g *AnalysisGuard) reject(req models.RoundRequest) {
	g.metrics.RecordRoundRejected()
	g.logger.Info("analysis round dropped, one already in flight",
		logger.String("reason", string(req.Reason)),
		logger.String("detail", req.Detail))
	g.publish("rejected", req, "")
}

func (g *AnalysisGuard) publish(what string, req models.RoundRequest, roundID string) {
	if g.feed == nil {
		return
	}
	fields := map[string]string{"reason": string(req.Reason)}
	if req.Detail != "" {
		fields["detail"] = req.Detail
	}
	if roundID != "" {
		fields["round_id"] = roundID
	}
	g.feed.Publish("round", what, fields)
}

// LastCompleted returns the completion timestamp of the most recent round,
// zero when none has ever finished.
func (g *AnalysisGuard) LastCompleted() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completedAt
}

// Status returns the snapshot served by the status endpoint.
func (g *AnalysisGuard) Status() models.AnalysisState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := models.AnalysisState{
		InFlight:    g.inFlight,
		LastReason:  g.lastReason,
		LastRoundID: g.lastRoundID,
		LastError:   g.lastError,
	}
	if !g.startedAt.IsZero() {
		t := g.startedAt
		st.StartedAt = &t
	}
	if !g.completedAt.IsZero() {
		t := g.completedAt
		st.CompletedAt = &t
	}
	return st
}
