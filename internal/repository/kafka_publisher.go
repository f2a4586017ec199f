package repository

import (
	"context"

	"MarkWatch/internal/domain/models"
	domrepo "MarkWatch/internal/domain/repository"
	pkgkafka "MarkWatch/pkg/kafka"
)

// KafkaTickPublisher fans mark-price ticks out to the ticks topic, keyed by
// symbol so per-symbol ordering survives partitioning.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) domrepo.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.MarkPriceTick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.MarkPriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(t.Symbol),
			Value: t,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaRoundPublisher emits one event per finished analysis round, keyed by
// round id. Shares the producer with the tick publisher; Close is owned there.
type KafkaRoundPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRoundPublisher(producer *pkgkafka.Producer, topic string) domrepo.RoundPublisher {
	return &KafkaRoundPublisher{producer: producer, topic: topic}
}

func (p *KafkaRoundPublisher) PublishRound(ctx context.Context, rec *models.RoundRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.ID), rec)
}
