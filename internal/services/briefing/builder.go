package briefing

import (
	"context"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	"MarkWatch/pkg/logger"
)

// LongformSource hands out the cached longform market summary, if any.
type LongformSource interface {
	Current() (*models.LongformReport, bool)
}

// PositionSource reads current exposure from the exchange.
type PositionSource interface {
	Positions(ctx context.Context, symbols []string) ([]models.Position, error)
}

// Builder assembles the round context sent to the analysis pipeline. Every
// section except prices is best effort: an empty store on a fresh deployment
// still yields a usable briefing for the catch-up round.
type Builder struct {
	klines    domrepo.KlineStore
	news      domrepo.NewsStore
	bands     domrepo.BandStore
	prices    domrepo.PriceSource
	positions PositionSource
	longform  LongformSource

	intervals  []string
	klineLimit int
	newsLimit  int

	logger  *logger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewBuilder(
	klines domrepo.KlineStore,
	news domrepo.NewsStore,
	bands domrepo.BandStore,
	prices domrepo.PriceSource,
	positions PositionSource,
	longform LongformSource,
	intervals []string,
	klineLimit int,
	lgr *logger.Logger,
	metrics domrepo.Metrics,
) *Builder {
	if len(intervals) == 0 {
		intervals = domrepo.DefaultIntervals()
	}
	if klineLimit <= 0 {
		klineLimit = 50
	}
	return &Builder{
		klines:     klines,
		news:       news,
		bands:      bands,
		prices:     prices,
		positions:  positions,
		longform:   longform,
		intervals:  intervals,
		klineLimit: klineLimit,
		newsLimit:  50,
		logger:     lgr,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Build collects prices, klines, news, the longform summary, alert bands and
// open positions for the requested assets. It fails only when no price could
// be read for any asset; analysis without a single live price is pointless.
func (b *Builder) Build(ctx context.Context, req models.RoundRequest) (*models.RoundContext, error) {
	rc := &models.RoundContext{
		Request: req,
		Prices:  make(map[string]float64, len(req.Assets)),
		Klines:  make(map[string][]models.Kline),
		Bands:   map[string]*models.AlertBand{},
		BuiltAt: b.now(),
	}

	for _, asset := range req.Assets {
		price, err := b.prices.MarkPrice(ctx, asset)
		if err != nil {
			b.metrics.RecordError("briefing_price")
			b.logger.Warn("briefing: price unavailable",
				logger.String("asset", asset), logger.Error(err))
			continue
		}
		rc.Prices[asset] = price
	}
	if len(rc.Prices) == 0 {
		return nil, fmt.Errorf("no mark price available for any of %d assets", len(req.Assets))
	}

	for _, asset := range req.Assets {
		for _, interval := range b.intervals {
			klines, err := b.klines.Latest(ctx, asset, interval, b.klineLimit)
			if err != nil {
				b.metrics.RecordError("briefing_klines")
				b.logger.Warn("briefing: klines unavailable",
					logger.String("asset", asset),
					logger.String("interval", interval),
					logger.Error(err))
				continue
			}
			if len(klines) == 0 {
				continue
			}
			rc.Klines[asset+":"+interval] = klines
		}
	}

	for _, source := range []models.NewsSource{models.NewsFlash, models.NewsArticle} {
		items, err := b.news.Latest(ctx, source, b.newsLimit)
		if err != nil {
			b.metrics.RecordError("briefing_news")
			b.logger.Warn("briefing: news unavailable",
				logger.String("source", string(source)), logger.Error(err))
			continue
		}
		rc.News = append(rc.News, items...)
	}

	if b.longform != nil {
		if report, ok := b.longform.Current(); ok {
			rc.Longform = report
		}
	}

	bands, err := b.bands.List(ctx, req.Assets)
	if err != nil {
		b.metrics.RecordError("briefing_bands")
		b.logger.Warn("briefing: bands unavailable", logger.Error(err))
	} else {
		rc.Bands = bands
	}

	if b.positions != nil {
		positions, err := b.positions.Positions(ctx, req.Assets)
		if err != nil {
			b.metrics.RecordError("briefing_positions")
			b.logger.Warn("briefing: positions unavailable", logger.Error(err))
		} else {
			rc.Positions = positions
		}
	}

	return rc, nil
}
