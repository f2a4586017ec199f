package repository

import (
	"context"
	"time"

	"MarkWatch/internal/domain/models"
)

type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarkPriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type TickPublisher interface {
	Publish(ctx context.Context, t *models.MarkPriceTick) error
	PublishBatch(ctx context.Context, ticks []*models.MarkPriceTick) error
	Close() error
}

type RoundPublisher interface {
	PublishRound(ctx context.Context, rec *models.RoundRecord) error
}

type TickHistory interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, ticks []*models.MarkPriceTick) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarkPriceTick, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordTick(seconds float64)
	RecordTrigger(reason string)
	RecordRoundRejected()
	RecordRound(status string, seconds float64)
	RecordJobRun(name, status string, seconds float64)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordPublished(topic string, count int)
	RecordLatency(op string, seconds float64)
	SetRunning(running bool)
}
