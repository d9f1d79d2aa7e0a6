package repository

import (
	"context"
	"time"

	"ChartPulse/internal/domain/models"
)

// Storage persists assets, price history, and backtest runs.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	UpsertAsset(ctx context.Context, a *models.Asset) error
	StorePriceBatch(ctx context.Context, batch *models.PriceBatch) error
	SeriesFor(ctx context.Context, assetClass, symbol string, from, to time.Time) ([]string, []float64, error)
	StoreRun(ctx context.Context, run *models.RunRecord) error
	AssetSummaries(ctx context.Context, assetClass string, limit int) ([]models.AssetSummary, error)
	RunDetail(ctx context.Context, assetClass, symbol string, windowLimit int) (*models.RunDetail, error)
	PruneRuns(ctx context.Context, assetClass string, olderThan time.Time) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Publisher ships price batches to a message broker instead of writing
// them to storage directly.
type Publisher interface {
	PublishBatch(ctx context.Context, batch *models.PriceBatch) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordFetch(source, status string)
	RecordError(kind string)
	RecordMessageSent(backend, symbol string)
	RecordRunMAPE(assetClass, symbol string, mape float64)
	RecordLatency(op string, seconds float64)
	RecordCacheOutcome(keyspace, outcome string)
}

// ProgressNotifier pushes refresh progress to connected subscribers.
type ProgressNotifier interface {
	Broadcast(p *models.RunProgress)
}
