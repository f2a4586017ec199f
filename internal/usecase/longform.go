package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	domsvc "MarkWatch/internal/domain/service"
	svcache "MarkWatch/internal/service/cache"
	"MarkWatch/pkg/logger"
)

const longformKey = "longform:report"

// LongformRefresher is the longform_refresh job: it asks the pipeline
// service for a fresh daily market summary and caches it for round context.
type LongformRefresher struct {
	pipeline domsvc.AnalysisPipeline
	cache    svcache.BytesCache
	ttl      time.Duration
	logger   *logger.Logger
	metrics  drepo.Metrics
}

func NewLongformRefresher(pipeline domsvc.AnalysisPipeline, cache svcache.BytesCache, ttl time.Duration, lgr *logger.Logger, metrics drepo.Metrics) *LongformRefresher {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &LongformRefresher{pipeline: pipeline, cache: cache, ttl: ttl, logger: lgr, metrics: metrics}
}

func (l *LongformRefresher) Refresh(ctx context.Context, assets []string) error {
	if len(assets) == 0 {
		return nil
	}
	rep, err := l.pipeline.Longform(ctx, assets)
	if err != nil {
		l.metrics.RecordError("longform_fetch")
		return fmt.Errorf("longform refresh: %w", err)
	}

	b, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("longform encode: %w", err)
	}
	if err := l.cache.SetBytes(longformKey, b, l.ttl); err != nil {
		l.metrics.RecordError("longform_cache")
		return fmt.Errorf("longform cache: %w", err)
	}

	l.logger.Info("longform report refreshed",
		logger.Int("bytes", len(b)),
		logger.Time("generated_at", rep.GeneratedAt))
	return nil
}

// Current returns the cached report, if any. A stale or missing cache is
// not an error; round context simply omits the summary.
func (l *LongformRefresher) Current() (*models.LongformReport, bool) {
	b, ok, err := l.cache.GetBytes(longformKey)
	if err != nil {
		l.logger.Warn("longform cache read failed", logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rep models.LongformReport
	if err := json.Unmarshal(b, &rep); err != nil {
		l.logger.Warn("longform cache decode failed", logger.Error(err))
		return nil, false
	}
	return &rep, true
}
