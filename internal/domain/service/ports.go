package service

import (
	"context"
	"time"

	"MarkWatch/internal/domain/models"
)

// AnalysisPipeline is the external multi-agent service that turns a round
// context into a trade plan. Calls can take minutes; cancellation is the
// caller's business.
type AnalysisPipeline interface {
	Analyze(ctx context.Context, rc *models.RoundContext) (*models.TradePlan, error)
	Longform(ctx context.Context, assets []string) (*models.LongformReport, error)
}

// NewsFetcher pulls newsflash or article entries from the upstream feed.
// Only items published strictly after since are returned, oldest first.
type NewsFetcher interface {
	FetchSince(ctx context.Context, source models.NewsSource, since time.Time) ([]models.NewsItem, error)
}
