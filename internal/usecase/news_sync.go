package usecase

import (
	"context"
	"fmt"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	domsvc "MarkWatch/internal/domain/service"
	"MarkWatch/pkg/logger"
)

// NewsSync pulls one feed (newsflash or article) forward from the newest
// stored item. Both sync jobs share this usecase with different sources.
type NewsSync struct {
	fetcher domsvc.NewsFetcher
	store   drepo.NewsStore
	logger  *logger.Logger
	metrics drepo.Metrics
}

func NewNewsSync(fetcher domsvc.NewsFetcher, store drepo.NewsStore, lgr *logger.Logger, metrics drepo.Metrics) *NewsSync {
	return &NewsSync{fetcher: fetcher, store: store, logger: lgr, metrics: metrics}
}

func (n *NewsSync) Run(ctx context.Context, source models.NewsSource) error {
	since, err := n.store.NewestPublishedAt(ctx, source)
	if err != nil {
		n.metrics.RecordError("news_watermark")
		return fmt.Errorf("news watermark %s: %w", source, err)
	}

	items, err := n.fetcher.FetchSince(ctx, source, since)
	if err != nil {
		n.metrics.RecordError("news_fetch")
		return fmt.Errorf("fetch %s: %w", source, err)
	}
	if len(items) == 0 {
		n.logger.Debug("news feed up to date", logger.String("source", string(source)))
		return nil
	}

	if err := n.store.Insert(ctx, items); err != nil {
		n.metrics.RecordError("news_store")
		return fmt.Errorf("store %s: %w", source, err)
	}

	n.logger.Info("news synced",
		logger.String("source", string(source)),
		logger.Int("count", len(items)))
	return nil
}
