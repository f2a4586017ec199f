package repository

import (
	"context"

	"MarkWatch/internal/domain/models"
)

// PriceSource answers "what is the mark price right now". The layered
// implementation serves fresh stream ticks from cache and falls back to REST.
type PriceSource interface {
	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// Exchange is the REST surface of the futures venue used for data pulls and
// order placement. Quantities are in contracts, prices in quote currency.
type Exchange interface {
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Kline, error)
	Positions(ctx context.Context, symbols []string) ([]models.Position, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	OpenMarket(ctx context.Context, symbol string, side models.PositionSide, quantity float64) error
	CloseMarket(ctx context.Context, symbol string, side models.PositionSide, quantity float64) error

	// ReplaceProtection cancels the symbol's open orders and places
	// close-position stop and take-profit orders at the given levels.
	ReplaceProtection(ctx context.Context, symbol string, side models.PositionSide, stopLoss, takeProfit *float64) error
}
