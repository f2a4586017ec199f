package usecase

import (
	"context"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/internal/service/pricefeed"
)

// TickProcessor routes one mark-price tick: freshest value into the price
// cache for the monitor, the tick itself onto the Kafka topic for history.
type TickProcessor struct {
	pub     drepo.TickPublisher
	cache   *pricefeed.PriceCache
	metrics drepo.Metrics
}

func NewTickProcessor(pub drepo.TickPublisher, cache *pricefeed.PriceCache, metrics drepo.Metrics) *TickProcessor {
	return &TickProcessor{pub: pub, cache: cache, metrics: metrics}
}

func (p *TickProcessor) Process(ctx context.Context, t *models.MarkPriceTick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	// Cache first: the monitor must see the price even when Kafka is down.
	p.cache.Put(t)
	p.metrics.RecordLastPrice(t.Symbol, t.MarkPrice)

	start := time.Now()
	if err := p.pub.Publish(ctx, t); err != nil {
		p.metrics.RecordError("tick_publish")
		return fmt.Errorf("publish tick: %w", err)
	}
	p.metrics.RecordLatency("tick_publish", time.Since(start).Seconds())
	return nil
}

func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.MarkPriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		p.cache.Put(t)
	}

	start := time.Now()
	if err := p.pub.PublishBatch(ctx, ticks); err != nil {
		p.metrics.RecordError("tick_publish_batch")
		return fmt.Errorf("publish tick batch: %w", err)
	}
	p.metrics.RecordLatency("tick_publish_batch", time.Since(start).Seconds())
	return nil
}

// Close closes the underlying publisher.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
