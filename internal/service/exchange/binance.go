package exchange

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	"MarkWatch/internal/service/ratelimit"
	"MarkWatch/pkg/logger"
)

// Config carries the exchange connection settings.
type Config struct {
	APIKey         string
	SecretKey      string
	BaseURL        string
	UseTestnet     bool
	RequestsPerSec float64
	Burst          float64
}

// Binance implements the futures REST surface. All requests pass through a
// shared token bucket so bursts of kline fetches cannot trip the venue's
// request weight limits.
type Binance struct {
	client *futures.Client
	rl     *ratelimit.Limiter
	rps    float64
	burst  float64
	logger *logger.Logger

	mu      sync.Mutex
	qtyPrec map[string]int
	prcPrec map[string]int
}

func NewBinance(cfg Config, lgr *logger.Logger) *Binance {
	if cfg.UseTestnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 8
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 16
	}
	return &Binance{
		client: client,
		rl:     ratelimit.New(),
		rps:    cfg.RequestsPerSec,
		burst:  cfg.Burst,
		logger: lgr,
	}
}

// throttle blocks until a request token is available or ctx is done.
func (b *Binance) throttle(ctx context.Context) error {
	for {
		if b.rl.Allow("binance", b.burst, b.rps) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (b *Binance) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.throttle(ctx); err != nil {
		return 0, err
	}
	res, err := b.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("premium index %s: %w", symbol, err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("premium index %s: empty response", symbol)
	}
	price, err := strconv.ParseFloat(res[0].MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("premium index %s: bad mark price %q", symbol, res[0].MarkPrice)
	}
	return price, nil
}

func (b *Binance) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Kline, error) {
	if err := b.throttle(ctx); err != nil {
		return nil, err
	}
	rows, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	out := make([]models.Kline, 0, len(rows))
	for _, row := range rows {
		k := models.Kline{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  time.UnixMilli(row.OpenTime),
			CloseTime: time.UnixMilli(row.CloseTime),
			Trades:    row.TradeNum,
		}
		k.Open = parseFloat(row.Open)
		k.High = parseFloat(row.High)
		k.Low = parseFloat(row.Low)
		k.Close = parseFloat(row.Close)
		k.Volume = parseFloat(row.Volume)
		k.QuoteVol = parseFloat(row.QuoteAssetVolume)
		k.TakerBuy = parseFloat(row.TakerBuyBaseAssetVolume)
		out = append(out, k)
	}
	return out, nil
}

func (b *Binance) Positions(ctx context.Context, symbols []string) ([]models.Position, error) {
	if err := b.throttle(ctx); err != nil {
		return nil, err
	}
	rows, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	var out []models.Position
	for _, row := range rows {
		if len(want) > 0 && !want[row.Symbol] {
			continue
		}
		amt := parseFloat(row.PositionAmt)
		if amt == 0 {
			continue
		}
		side := models.SideLong
		if amt < 0 {
			side = models.SideShort
			amt = -amt
		}
		lev, _ := strconv.Atoi(row.Leverage)
		out = append(out, models.Position{
			Symbol:        row.Symbol,
			Side:          side,
			Quantity:      amt,
			EntryPrice:    parseFloat(row.EntryPrice),
			MarkPrice:     parseFloat(row.MarkPrice),
			Leverage:      lev,
			UnrealizedPnL: parseFloat(row.UnRealizedProfit),
		})
	}
	return out, nil
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := b.throttle(ctx); err != nil {
		return err
	}
	_, err := b.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		// the venue reports an error when the leverage already matches
		if strings.Contains(err.Error(), "No need to change") {
			return nil
		}
		return fmt.Errorf("set leverage %s %dx: %w", symbol, leverage, err)
	}
	b.logger.Debug("leverage set",
		logger.String("symbol", symbol), logger.Int("leverage", leverage))
	return nil
}

func (b *Binance) OpenMarket(ctx context.Context, symbol string, side models.PositionSide, quantity float64) error {
	qty, err := b.formatQuantity(ctx, symbol, quantity)
	if err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(entrySide(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("open %s %s %s: %w", side, symbol, qty, err)
	}
	b.logger.Info("market order placed",
		logger.String("symbol", symbol),
		logger.String("side", string(side)),
		logger.String("quantity", qty),
		logger.Int64("order_id", order.OrderID))
	return nil
}

func (b *Binance) CloseMarket(ctx context.Context, symbol string, side models.PositionSide, quantity float64) error {
	qty, err := b.formatQuantity(ctx, symbol, quantity)
	if err != nil {
		return err
	}
	if err := b.throttle(ctx); err != nil {
		return err
	}
	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(exitSide(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("close %s %s %s: %w", side, symbol, qty, err)
	}
	b.logger.Info("position closed",
		logger.String("symbol", symbol),
		logger.String("side", string(side)),
		logger.String("quantity", qty),
		logger.Int64("order_id", order.OrderID))
	return nil
}

// ReplaceProtection cancels every open order on the symbol and re-places the
// close-position stop and take-profit orders. Both trigger on mark price, the
// same series the monitor watches.
func (b *Binance) ReplaceProtection(ctx context.Context, symbol string, side models.PositionSide, stopLoss, takeProfit *float64) error {
	if err := b.throttle(ctx); err != nil {
		return err
	}
	if err := b.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return fmt.Errorf("cancel open orders %s: %w", symbol, err)
	}

	place := func(orderType futures.OrderType, price float64) error {
		trigger, err := b.formatPrice(ctx, symbol, price)
		if err != nil {
			return err
		}
		if err := b.throttle(ctx); err != nil {
			return err
		}
		_, err = b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(exitSide(side)).
			Type(orderType).
			StopPrice(trigger).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("place %s %s @ %s: %w", orderType, symbol, trigger, err)
		}
		b.logger.Info("protection order placed",
			logger.String("symbol", symbol),
			logger.String("type", string(orderType)),
			logger.String("trigger", trigger))
		return nil
	}

	if stopLoss != nil {
		if err := place(futures.OrderTypeStopMarket, *stopLoss); err != nil {
			return err
		}
	}
	if takeProfit != nil {
		if err := place(futures.OrderTypeTakeProfitMarket, *takeProfit); err != nil {
			return err
		}
	}
	return nil
}

// loadFilters caches quantity and price precision for every symbol from one
// exchangeInfo call. Filter values arrive as strings like "0.001".
func (b *Binance) loadFilters(ctx context.Context) error {
	b.mu.Lock()
	if b.qtyPrec != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.throttle(ctx); err != nil {
		return err
	}
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("exchange info: %w", err)
	}

	qty := make(map[string]int, len(info.Symbols))
	prc := make(map[string]int, len(info.Symbols))
	for _, s := range info.Symbols {
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "LOT_SIZE":
				if step, ok := f["stepSize"].(string); ok {
					qty[s.Symbol] = stepPrecision(step)
				}
			case "PRICE_FILTER":
				if tick, ok := f["tickSize"].(string); ok {
					prc[s.Symbol] = stepPrecision(tick)
				}
			}
		}
	}

	b.mu.Lock()
	b.qtyPrec = qty
	b.prcPrec = prc
	b.mu.Unlock()
	return nil
}

func (b *Binance) formatQuantity(ctx context.Context, symbol string, quantity float64) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %g", quantity)
	}
	prec := 3
	if err := b.loadFilters(ctx); err != nil {
		b.logger.Warn("exchange filters unavailable, using default precision",
			logger.Error(err))
	} else {
		b.mu.Lock()
		if p, ok := b.qtyPrec[symbol]; ok {
			prec = p
		}
		b.mu.Unlock()
	}
	return strconv.FormatFloat(truncate(quantity, prec), 'f', prec, 64), nil
}

func (b *Binance) formatPrice(ctx context.Context, symbol string, price float64) (string, error) {
	if price <= 0 {
		return "", fmt.Errorf("price must be positive, got %g", price)
	}
	prec := 2
	if err := b.loadFilters(ctx); err != nil {
		b.logger.Warn("exchange filters unavailable, using default precision",
			logger.Error(err))
	} else {
		b.mu.Lock()
		if p, ok := b.prcPrec[symbol]; ok {
			prec = p
		}
		b.mu.Unlock()
	}
	return strconv.FormatFloat(truncate(price, prec), 'f', prec, 64), nil
}

func entrySide(side models.PositionSide) futures.SideType {
	if side == models.SideShort {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func exitSide(side models.PositionSide) futures.SideType {
	if side == models.SideShort {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

// stepPrecision counts the decimals of a step like "0.001" -> 3. "1" -> 0.
func stepPrecision(step string) int {
	step = strings.TrimRight(step, "0")
	dot := strings.IndexByte(step, '.')
	if dot < 0 || dot == len(step)-1 {
		return 0
	}
	return len(step) - dot - 1
}

// truncate rounds toward zero at prec decimals so quantities never exceed
// what the balance covers.
func truncate(v float64, prec int) float64 {
	p := math.Pow10(prec)
	return math.Trunc(v*p) / p
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

var _ domrepo.Exchange = (*Binance)(nil)
var _ domrepo.PriceSource = (*Binance)(nil)
