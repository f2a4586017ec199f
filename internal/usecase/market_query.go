package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgcache "MarkWatch/pkg/cache"
	"MarkWatch/pkg/util"
)

// klineCacheTTL bounds how stale a cached kline response can be.
const klineCacheTTL = 30 * time.Second

// MarketQuery provides read access for the dashboard endpoints.
type MarketQuery struct {
	klines domrepo.KlineStore
	news   domrepo.NewsStore
	rounds domrepo.RoundStore
	bands  domrepo.BandStore
	cache  pkgcache.Service // optional; nil disables response caching
}

func NewMarketQuery(klines domrepo.KlineStore, news domrepo.NewsStore, rounds domrepo.RoundStore, bands domrepo.BandStore, cache pkgcache.Service) *MarketQuery {
	return &MarketQuery{klines: klines, news: news, rounds: rounds, bands: bands, cache: cache}
}

type GetKlinesParams struct {
	Symbol   string
	Interval string
	Limit    int
}

type GetKlinesResult struct {
	Symbol   string         `json:"symbol"`
	Interval string         `json:"interval"`
	Count    int            `json:"count"`
	Klines   []models.Kline `json:"klines"`
}

func (uc *MarketQuery) GetKlines(ctx context.Context, p GetKlinesParams) (*GetKlinesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	symbol := util.NormalizeSymbol(p.Symbol)
	interval := domrepo.NormalizeInterval(p.Interval)
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}

	key := pkgcache.Key("klines", symbol, interval, p.Limit)
	if uc.cache != nil {
		var raw string
		if err := uc.cache.Get(ctx, key, &raw); err == nil {
			var cached GetKlinesResult
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		}
	}

	klines, err := uc.klines.Latest(ctx, symbol, interval, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	res := &GetKlinesResult{
		Symbol:   symbol,
		Interval: interval,
		Count:    len(klines),
		Klines:   klines,
	}
	if uc.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			_ = uc.cache.Set(ctx, key, string(b), klineCacheTTL)
		}
	}
	return res, nil
}

func (uc *MarketQuery) GetNews(ctx context.Context, source models.NewsSource, limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	items, err := uc.news.Latest(ctx, source, limit)
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	return items, nil
}

func (uc *MarketQuery) GetRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	recs, err := uc.rounds.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get rounds: %w", err)
	}
	return recs, nil
}

func (uc *MarketQuery) GetBands(ctx context.Context, assets []string) (map[string]*models.AlertBand, error) {
	if len(assets) == 0 {
		return map[string]*models.AlertBand{}, nil
	}
	bands, err := uc.bands.List(ctx, util.NormalizeSymbols(assets))
	if err != nil {
		return nil, fmt.Errorf("get alert bands: %w", err)
	}
	return bands, nil
}
