package pricefeed

import (
	"time"

	"MarkWatch/internal/domain/models"
	svcache "MarkWatch/internal/service/cache"
)

// PriceCache holds the freshest mark price per symbol with a short TTL.
// The monitor reads it first; an expired entry falls through to REST.
type PriceCache struct {
	ttl    *svcache.TTLCache[*models.MarkPriceTick]
	maxAge time.Duration
}

func NewPriceCache(maxAge time.Duration) *PriceCache {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &PriceCache{ttl: svcache.NewTTLCache[*models.MarkPriceTick](), maxAge: maxAge}
}

func (p *PriceCache) Put(t *models.MarkPriceTick) {
	if t == nil || t.Symbol == "" {
		return
	}
	p.ttl.Set(t.Symbol, t, p.maxAge)
}

// Fresh returns the cached mark price if one arrived within maxAge.
func (p *PriceCache) Fresh(symbol string) (float64, bool) {
	t, ok := p.ttl.Get(symbol)
	if !ok || t.MarkPrice <= 0 {
		return 0, false
	}
	return t.MarkPrice, true
}
