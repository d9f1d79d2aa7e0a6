package usecase

import (
	"context"
	"fmt"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
)

// PriceProcessor routes price batches to the configured backend.
type PriceProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	chunkSz int
}

// NewPriceProcessor creates a new PriceProcessor instance.
func NewPriceProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	chunkSz int,
) *PriceProcessor {
	if chunkSz <= 0 {
		chunkSz = 1000
	}
	return &PriceProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		chunkSz: chunkSz,
	}
}

// ProcessBatch splits the batch into bounded chunks and hands each to the
// configured backend. Returns the number of points accepted.
func (p *PriceProcessor) ProcessBatch(ctx context.Context, batch *models.PriceBatch) (int, error) {
	if batch == nil || len(batch.Points) == 0 {
		return 0, nil
	}

	start := time.Now()
	stored := 0
	points := batch.Points
	for begin := 0; begin < len(points); begin += p.chunkSz {
		end := begin + p.chunkSz
		if end > len(points) {
			end = len(points)
		}
		chunk := &models.PriceBatch{
			AssetClass: batch.AssetClass,
			Symbol:     batch.Symbol,
			Points:     points[begin:end],
		}

		var err error
		switch p.backend {
		case "kafka":
			err = p.pub.PublishBatch(ctx, chunk)
		case "clickhouse":
			err = p.store.StorePriceBatch(ctx, chunk)
		default:
			err = fmt.Errorf("unknown backend: %s", p.backend)
		}
		if err != nil {
			p.metrics.RecordError("process_batch")
			return stored, fmt.Errorf("process price batch: %w", err)
		}

		stored += len(chunk.Points)
		p.metrics.RecordMessageSent(p.backend, batch.Symbol)
	}

	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return stored, nil
}

// Close closes underlying resources if available.
func (p *PriceProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
