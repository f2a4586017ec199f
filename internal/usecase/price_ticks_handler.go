package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgkafka "MarkWatch/pkg/kafka"
)

// PriceTicksHandler consumes the mark-price topic and writes history rows.
type PriceTicksHandler struct {
	topic   string
	history domrepo.TickHistory
	metrics domrepo.Metrics
}

func NewPriceTicksHandler(topic string, history domrepo.TickHistory, metrics domrepo.Metrics) *PriceTicksHandler {
	return &PriceTicksHandler{topic: topic, history: history, metrics: metrics}
}

func (h *PriceTicksHandler) Topic() string { return h.topic }

func (h *PriceTicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.MarkPriceTick
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if t.Symbol == "" || t.MarkPrice <= 0 {
		h.metrics.RecordError("consumer_invalid")
		return nil // drop, nothing to retry
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(t.EventTime).Seconds())

	start := time.Now()
	if err := h.history.StoreBatch(ctx, []*models.MarkPriceTick{&t}); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*PriceTicksHandler)(nil)
