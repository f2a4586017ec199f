package usecase

import (
	"context"
	"fmt"

	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/pkg/logger"
	"MarkWatch/pkg/queue"
)

// MarketSync is the market_data_sync job. It fans one kline-fetch task per
// (symbol, interval) out onto the Redis work queue; the queue's worker pool
// does the actual fetching so a slow exchange call never stalls the job.
type MarketSync struct {
	queue     *queue.RedisQueue
	intervals []string
	limit     int

	logger  *logger.Logger
	metrics drepo.Metrics
}

func NewMarketSync(q *queue.RedisQueue, intervals []string, limit int, lgr *logger.Logger, metrics drepo.Metrics) *MarketSync {
	if len(intervals) == 0 {
		intervals = drepo.DefaultIntervals()
	}
	if limit <= 0 {
		limit = 200
	}
	return &MarketSync{queue: q, intervals: intervals, limit: limit, logger: lgr, metrics: metrics}
}

func (ms *MarketSync) Run(ctx context.Context, assets []string) error {
	if len(assets) == 0 {
		return nil
	}

	total, failed := 0, 0
	for _, symbol := range assets {
		for _, interval := range ms.intervals {
			total++
			payload := KlineFetchPayload{Symbol: symbol, Interval: interval, Limit: ms.limit}
			if err := ms.queue.Enqueue(ctx, TypeKlineFetch, payload); err != nil {
				failed++
				ms.metrics.RecordError("kline_enqueue")
				ms.logger.Warn("enqueue kline fetch failed",
					logger.String("symbol", symbol),
					logger.String("interval", interval),
					logger.Error(err))
			}
		}
	}

	ms.logger.Debug("market data sync enqueued",
		logger.Int("tasks", total-failed), logger.Int("failed", failed))
	if failed == total {
		return fmt.Errorf("market sync: all %d fetch tasks failed to enqueue", total)
	}
	return nil
}
