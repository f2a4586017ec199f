package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/internal/services/indicators"
	"MarkWatch/pkg/logger"
	"MarkWatch/pkg/queue"
)

// TypeKlineFetch is the queue message type for one (symbol, interval) pull.
const TypeKlineFetch = "kline.fetch"

type KlineFetchPayload struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

// KlineFetchJob is the queue worker side of market_data_sync: pull klines
// from the exchange, recompute indicator columns, upsert the cache.
type KlineFetchJob struct {
	exchange drepo.Exchange
	store    drepo.KlineStore
	logger   *logger.Logger
	metrics  drepo.Metrics
}

func NewKlineFetchJob(exchange drepo.Exchange, store drepo.KlineStore, lgr *logger.Logger, metrics drepo.Metrics) *KlineFetchJob {
	return &KlineFetchJob{exchange: exchange, store: store, logger: lgr, metrics: metrics}
}

func (j *KlineFetchJob) Name() string { return "kline_fetch" }
func (j *KlineFetchJob) Type() string { return TypeKlineFetch }

func (j *KlineFetchJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[KlineFetchPayload](payload)
	if err != nil {
		j.metrics.RecordError("kline_payload")
		return fmt.Errorf("kline fetch payload: %w", err)
	}
	if !drepo.IsValidInterval(p.Interval) {
		return fmt.Errorf("kline fetch: unsupported interval %q", p.Interval)
	}

	start := time.Now()
	klines, err := j.exchange.Klines(ctx, p.Symbol, p.Interval, p.Limit)
	if err != nil {
		j.metrics.RecordError("kline_fetch")
		return fmt.Errorf("fetch klines %s %s: %w", p.Symbol, p.Interval, err)
	}
	if len(klines) == 0 {
		return nil
	}

	indicators.Enrich(klines)

	if err := j.store.Upsert(ctx, klines); err != nil {
		j.metrics.RecordError("kline_store")
		return fmt.Errorf("store klines %s %s: %w", p.Symbol, p.Interval, err)
	}

	j.metrics.RecordLatency("kline_refresh", time.Since(start).Seconds())
	j.logger.Debug("klines refreshed",
		logger.String("symbol", p.Symbol),
		logger.String("interval", p.Interval),
		logger.Int("count", len(klines)))
	return nil
}

var _ queue.Job = (*KlineFetchJob)(nil)
