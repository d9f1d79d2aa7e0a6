package repository

import (
	"context"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	pkgkafka "ChartPulse/pkg/kafka"
)

// KafkaPriceSink implements Publisher for Kafka. Each batch becomes one
// message keyed by asset so an asset's history lands on one partition.
type KafkaPriceSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPriceSink creates a Kafka-backed price publisher.
func NewKafkaPriceSink(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPriceSink{producer: producer, topic: topic}
}

func (p *KafkaPriceSink) PublishBatch(ctx context.Context, batch *models.PriceBatch) error {
	if batch == nil || len(batch.Points) == 0 {
		return nil
	}
	key := []byte(batch.AssetClass + ":" + batch.Symbol)
	return p.producer.Publish(ctx, p.topic, key, batch)
}

func (p *KafkaPriceSink) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
