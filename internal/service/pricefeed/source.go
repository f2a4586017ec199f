package pricefeed

import (
	"context"
	"time"

	drepo "MarkWatch/internal/domain/repository"
)

// LayeredSource answers mark-price lookups from the stream cache first and
// falls back to the exchange REST API when the cache entry is missing or
// stale.
type LayeredSource struct {
	cache   *PriceCache
	rest    drepo.PriceSource
	metrics drepo.Metrics
}

func NewLayeredSource(cache *PriceCache, rest drepo.PriceSource, metrics drepo.Metrics) *LayeredSource {
	return &LayeredSource{cache: cache, rest: rest, metrics: metrics}
}

func (s *LayeredSource) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if s.cache != nil {
		if px, ok := s.cache.Fresh(symbol); ok {
			return px, nil
		}
	}
	start := time.Now()
	px, err := s.rest.MarkPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordLatency("mark_price_rest", time.Since(start).Seconds())
	return px, nil
}

var _ drepo.PriceSource = (*LayeredSource)(nil)
