package repository

import (
	"context"
	"time"

	"MarkWatch/internal/domain/models"
)

// BandStore keeps the active alert band per asset. One band per asset,
// last write wins, cleared on position close.
type BandStore interface {
	Get(ctx context.Context, asset string) (*models.AlertBand, error)
	List(ctx context.Context, assets []string) (map[string]*models.AlertBand, error)
	Put(ctx context.Context, band *models.AlertBand) error
	Clear(ctx context.Context, asset string) error
}

// AnalysisStampStore persists the single global last-analysis timestamp.
// A zero time means no round has ever completed.
type AnalysisStampStore interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, t time.Time) error
}

// JobStateStore persists per-job last_run_at so restarts resume periods.
// Losing the hash degrades to run-immediately, never to a crash.
type JobStateStore interface {
	LoadLastRuns(ctx context.Context) (map[string]time.Time, error)
	SaveLastRun(ctx context.Context, name string, t time.Time) error
}

// KlineStore is the candle cache with indicator columns.
type KlineStore interface {
	Upsert(ctx context.Context, klines []models.Kline) error
	Latest(ctx context.Context, symbol, interval string, limit int) ([]models.Kline, error)
}

// NewsStore is the append-only newsflash/article archive.
type NewsStore interface {
	Insert(ctx context.Context, items []models.NewsItem) error
	Latest(ctx context.Context, source models.NewsSource, limit int) ([]models.NewsItem, error)
	NewestPublishedAt(ctx context.Context, source models.NewsSource) (time.Time, error)
}

// RoundStore appends analysis round records for auditing.
type RoundStore interface {
	Insert(ctx context.Context, rec *models.RoundRecord) error
	Recent(ctx context.Context, limit int) ([]models.RoundRecord, error)
}
