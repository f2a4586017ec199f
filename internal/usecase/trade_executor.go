package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/pkg/logger"
	"MarkWatch/pkg/util"
)

// riskBudget caps the loss a stop may allow, as a fraction of position
// margin. The stop distance is riskBudget/leverage of the entry price.
const riskBudget = 0.10

// TradeExecutor applies a trade plan to the exchange, decision by decision.
// It runs in strict simple mode: open only when flat, hold an existing
// same-direction position, never reverse in one step. The alert band is
// written when orders are placed and cleared when the position closes.
type TradeExecutor struct {
	exchange drepo.Exchange
	bands    drepo.BandStore

	logger  *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

func NewTradeExecutor(exchange drepo.Exchange, bands drepo.BandStore, lgr *logger.Logger, metrics drepo.Metrics) *TradeExecutor {
	return &TradeExecutor{exchange: exchange, bands: bands, logger: lgr, metrics: metrics, now: time.Now}
}

// Apply executes every decision independently; one asset's failure never
// blocks the others. The joined error marks the round failed.
func (e *TradeExecutor) Apply(ctx context.Context, cfg models.RunConfig, plan *models.TradePlan) error {
	if plan == nil || len(plan.Decisions) == 0 {
		return nil
	}
	var errs []error
	for _, d := range plan.Decisions {
		if err := e.apply(ctx, cfg, d); err != nil {
			e.metrics.RecordError("execute")
			e.logger.Error("decision failed",
				logger.String("asset", d.Asset),
				logger.String("action", string(d.Action)),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s %s: %w", d.Asset, d.Action, err))
		}
	}
	return errors.Join(errs...)
}

func (e *TradeExecutor) apply(ctx context.Context, cfg models.RunConfig, d models.AssetDecision) error {
	asset := util.NormalizeSymbol(d.Asset)
	if asset == "" {
		return fmt.Errorf("empty asset")
	}

	switch d.Action {
	case models.ActionHold, models.ActionWait, "":
		return nil
	case models.ActionOpenLong:
		return e.open(ctx, cfg, asset, models.SideLong, d)
	case models.ActionOpenShort:
		return e.open(ctx, cfg, asset, models.SideShort, d)
	case models.ActionCloseLong:
		return e.close(ctx, asset, models.SideLong)
	case models.ActionCloseShort:
		return e.close(ctx, asset, models.SideShort)
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
}

func (e *TradeExecutor) open(ctx context.Context, cfg models.RunConfig, asset string, side models.PositionSide, d models.AssetDecision) error {
	pos, err := e.position(ctx, asset)
	if err != nil {
		return fmt.Errorf("position lookup: %w", err)
	}
	if pos != nil {
		if pos.Side == side {
			e.logger.Info("already positioned, holding",
				logger.String("asset", asset), logger.String("side", string(side)))
			return nil
		}
		// Reversing in one step is not allowed; the pipeline must close first.
		e.logger.Warn("reverse requested while positioned, skipping",
			logger.String("asset", asset),
			logger.String("have", string(pos.Side)),
			logger.String("want", string(side)))
		return nil
	}

	leverage := clampLeverage(d.Leverage, cfg.LeverageMin, cfg.LeverageMax)
	if err := e.exchange.SetLeverage(ctx, asset, leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	mark, err := e.exchange.MarkPrice(ctx, asset)
	if err != nil {
		return fmt.Errorf("mark price: %w", err)
	}
	if mark <= 0 {
		return fmt.Errorf("mark price %g unusable", mark)
	}
	quantity := cfg.Capital * float64(leverage) / mark
	if err := e.exchange.OpenMarket(ctx, asset, side, quantity); err != nil {
		return fmt.Errorf("open market: %w", err)
	}

	entry := mark
	if pos, err := e.position(ctx, asset); err == nil && pos != nil && pos.EntryPrice > 0 {
		entry = pos.EntryPrice
	}

	stop, take := clampProtection(side, entry, leverage, d.StopLoss, d.TakeProfit)
	protErr := e.exchange.ReplaceProtection(ctx, asset, side, stop, take)
	if protErr != nil {
		e.logger.Error("protection orders failed, position unprotected",
			logger.String("asset", asset), logger.Error(protErr))
	}

	// The band is written even when protection orders fail: the monitor
	// must keep watching the intended levels either way.
	band := &models.AlertBand{
		Asset:      asset,
		Side:       side,
		StopLoss:   stop,
		TakeProfit: take,
		EntryPrice: entry,
		Leverage:   leverage,
		OpenedAt:   e.now(),
	}
	if err := e.bands.Put(ctx, band); err != nil {
		return errors.Join(protErr, fmt.Errorf("write alert band: %w", err))
	}

	e.logger.Info("position opened",
		logger.String("asset", asset),
		logger.String("side", string(side)),
		logger.Int("leverage", leverage),
		logger.Float64("entry", entry),
		logger.Float64("quantity", quantity))
	if protErr != nil {
		return fmt.Errorf("protection: %w", protErr)
	}
	return nil
}

func (e *TradeExecutor) close(ctx context.Context, asset string, side models.PositionSide) error {
	pos, err := e.position(ctx, asset)
	if err != nil {
		return fmt.Errorf("position lookup: %w", err)
	}
	if pos == nil || pos.Side != side {
		// Nothing to close; drop any leftover band so the monitor stops
		// watching a position that no longer exists.
		if err := e.bands.Clear(ctx, asset); err != nil {
			return fmt.Errorf("clear alert band: %w", err)
		}
		return nil
	}

	if err := e.exchange.CloseMarket(ctx, asset, side, pos.Quantity); err != nil {
		return fmt.Errorf("close market: %w", err)
	}
	if err := e.exchange.ReplaceProtection(ctx, asset, side, nil, nil); err != nil {
		e.logger.Warn("cancel protection after close failed",
			logger.String("asset", asset), logger.Error(err))
	}
	if err := e.bands.Clear(ctx, asset); err != nil {
		return fmt.Errorf("clear alert band: %w", err)
	}

	e.logger.Info("position closed",
		logger.String("asset", asset),
		logger.String("side", string(side)),
		logger.Float64("quantity", pos.Quantity))
	return nil
}

func (e *TradeExecutor) position(ctx context.Context, asset string) (*models.Position, error) {
	positions, err := e.exchange.Positions(ctx, []string{asset})
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Symbol == asset && positions[i].Quantity > 0 {
			return &positions[i], nil
		}
	}
	return nil, nil
}

func clampLeverage(want, min, max int) int {
	if want < min {
		return min
	}
	if want > max {
		return max
	}
	return want
}

// clampProtection bounds the stop so the worst case loses at most
// riskBudget of the margin; the take-profit passes through untouched.
func clampProtection(side models.PositionSide, entry float64, leverage int, stop, take *float64) (*float64, *float64) {
	if leverage < 1 {
		leverage = 1
	}
	allowed := entry * riskBudget / float64(leverage)

	switch side {
	case models.SideShort:
		ceil := entry + allowed
		if stop == nil || *stop > ceil {
			stop = &ceil
		}
	default:
		floor := entry - allowed
		if stop == nil || *stop < floor {
			stop = &floor
		}
	}
	return stop, take
}
