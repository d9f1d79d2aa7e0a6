package usecase

import (
	"context"
	"encoding/json"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	pkgkafka "ChartPulse/pkg/kafka"
	"ChartPulse/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaPricesHandler consumes price batches from Kafka and writes them
// to storage. It is the landing half of the kafka backend: the
// downloader publishes batches, this handler inserts them.
type KafkaPricesHandler struct {
	topic   string
	storage drepo.Storage
	metrics drepo.Metrics
}

func NewKafkaPricesHandler(topic string, storage drepo.Storage, metrics drepo.Metrics) *KafkaPricesHandler {
	return &KafkaPricesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaPricesHandler) Topic() string { return h.topic }

// incoming message schema: one models.PriceBatch per message
func (h *KafkaPricesHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.PriceBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if len(batch.Points) == 0 {
		return nil
	}

	start := time.Now()
	err := h.storage.StorePriceBatch(ctx, &batch)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", batch.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPricesHandler)(nil)

// NewIngestHook observes the ingest consumer: it stamps start time and
// trace id before handling, records end-to-end latency after, and counts
// terminal failures.
func NewIngestHook(m drepo.Metrics, log *logger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			if start, ok := ctx.Value(pkgkafka.CtxStartTime).(time.Time); ok {
				m.RecordLatency("kafka_ingest_seconds", time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			m.RecordError("consumer_terminal")
			fields := []logger.Field{
				logger.String("topic", topic),
				logger.Int64("offset", km.Offset),
				logger.Error(err),
			}
			if trace, ok := ctx.Value(pkgkafka.CtxTraceID).(string); ok && trace != "" {
				fields = append(fields, logger.String("trace_id", trace))
			}
			log.Error("price message dead-lettered", fields...)
		},
	}
}
