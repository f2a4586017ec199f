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

// MarketMonitor is the 60-second watchdog over open positions. Each tick it
// reads the alert band of every tracked asset, compares mark prices against
// the band levels and requests at most one analysis round:
//
//	hard touch  - a stop or take-profit level crossed; fires immediately
//	near touch  - price within the near threshold of a level; respects the
//	              cooldown since the last completed analysis
//	stale       - nothing touched but the last analysis is older than the
//	              staleness window
//
// A failed price fetch skips that asset and never kills the tick.
type MarketMonitor struct {
	bands  drepo.BandStore
	prices drepo.PriceSource
	guard  *AnalysisGuard

	cfgMu sync.RWMutex
	cfg   models.RunConfig

	feed    *mid.EventFeed
	logger  *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

func NewMarketMonitor(bands drepo.BandStore, prices drepo.PriceSource, guard *AnalysisGuard, feed *mid.EventFeed, lgr *logger.Logger, metrics drepo.Metrics) *MarketMonitor {
	return &MarketMonitor{
		bands:   bands,
		prices:  prices,
		guard:   guard,
		feed:    feed,
		logger:  lgr,
		metrics: metrics,
		now:     time.Now,
	}
}

// SetConfig swaps the tracked set and thresholds. Called by the scheduler
// on start and on in-place reconfiguration.
func (m *MarketMonitor) SetConfig(cfg models.RunConfig) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
}

func (m *MarketMonitor) config() models.RunConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

type touchHit struct {
	asset string
	level string
	price float64
}

// Tick evaluates one monitor pass. Returns an error only when the band
// store is unreachable; per-asset problems are logged and skipped.
func (m *MarketMonitor) Tick(ctx context.Context) error {
	cfg := m.config()
	if len(cfg.Assets) == 0 {
		return nil
	}
	start := m.now()
	defer func() {
		m.metrics.RecordTick(m.now().Sub(start).Seconds())
	}()

	bands, err := m.bands.List(ctx, cfg.Assets)
	if err != nil {
		m.metrics.RecordError("band_load")
		return fmt.Errorf("load alert bands: %w", err)
	}

	var hard, near *touchHit
	for _, asset := range cfg.Assets {
		band := bands[asset]
		if band == nil {
			continue
		}
		price, err := m.prices.MarkPrice(ctx, asset)
		if err != nil {
			m.metrics.RecordError("price_fetch")
			m.logger.Warn("price fetch failed, skipping asset",
				logger.String("asset", asset), logger.Error(err))
			continue
		}
		m.metrics.RecordLastPrice(asset, price)

		touch, level := band.Evaluate(price, cfg.NearThresholdPct)
		switch touch {
		case models.TouchHard:
			if hard == nil {
				hard = &touchHit{asset: asset, level: level, price: price}
			}
		case models.TouchNear:
			if near == nil {
				near = &touchHit{asset: asset, level: level, price: price}
			}
		}
	}

	now := m.now()
	last := m.guard.LastCompleted()
	cooldownOver := last.IsZero() || now.Sub(last) >= cfg.Cooldown
	staleOver := last.IsZero() || now.Sub(last) >= cfg.Staleness

	var reason models.TriggerReason
	var detail string
	switch {
	case hard != nil:
		reason = models.ReasonHardTouch
		detail = fmt.Sprintf("%s %s crossed at %g", hard.asset, hard.level, hard.price)
	case near != nil && cooldownOver:
		reason = models.ReasonNearTouch
		detail = fmt.Sprintf("%s near %s at %g", near.asset, near.level, near.price)
	case near != nil:
		m.logger.Debug("near touch suppressed by cooldown",
			logger.String("asset", near.asset),
			logger.String("level", near.level),
			logger.Time("last_analysis", last))
		return nil
	case staleOver:
		reason = models.ReasonStale
		if last.IsZero() {
			detail = "no analysis completed yet"
		} else {
			detail = fmt.Sprintf("last analysis %s ago", now.Sub(last).Truncate(time.Second))
		}
	default:
		return nil
	}

	m.metrics.RecordTrigger(string(reason))
	m.logger.Info("monitor trigger",
		logger.String("reason", string(reason)),
		logger.String("detail", detail))
	if m.feed != nil {
		m.feed.Publish("trigger", string(reason), map[string]string{"detail": detail})
	}

	m.guard.RequestRound(ctx, models.RoundRequest{
		Reason: reason,
		Detail: detail,
		Assets: cfg.Assets,
		Config: cfg,
	})
	return nil
}
