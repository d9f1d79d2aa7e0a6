package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type fakeStorage struct {
	mu        sync.Mutex
	assets    []models.Asset
	batches   []*models.PriceBatch
	runs      []*models.RunRecord
	pruned    []string
	seriesTS  []string
	seriesVal []float64
	seriesErr error
	batchErr  error
	runErr    error
}

func (s *fakeStorage) Init(ctx context.Context) error { return nil }

func (s *fakeStorage) UpsertAsset(ctx context.Context, a *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, *a)
	return nil
}

func (s *fakeStorage) StorePriceBatch(ctx context.Context, b *models.PriceBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *fakeStorage) SeriesFor(ctx context.Context, assetClass, symbol string, from, to time.Time) ([]string, []float64, error) {
	if s.seriesErr != nil {
		return nil, nil, s.seriesErr
	}
	return s.seriesTS, s.seriesVal, nil
}

func (s *fakeStorage) StoreRun(ctx context.Context, run *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runErr != nil {
		return s.runErr
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStorage) AssetSummaries(ctx context.Context, assetClass string, limit int) ([]models.AssetSummary, error) {
	return nil, nil
}

func (s *fakeStorage) RunDetail(ctx context.Context, assetClass, symbol string, windowLimit int) (*models.RunDetail, error) {
	return nil, nil
}

func (s *fakeStorage) PruneRuns(ctx context.Context, assetClass string, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, assetClass)
	return nil
}

func (s *fakeStorage) Health(ctx context.Context) error { return nil }
func (s *fakeStorage) Close() error                     { return nil }

type fakePublisher struct {
	mu      sync.Mutex
	batches []*models.PriceBatch
	err     error
}

func (p *fakePublisher) PublishBatch(ctx context.Context, b *models.PriceBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, b)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	frames []*models.RunProgress
}

func (n *fakeNotifier) Broadcast(p *models.RunProgress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, p)
}

func (n *fakeNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.frames))
	for _, f := range n.frames {
		out = append(out, f.Status)
	}
	return out
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors []string
	sent   []string
	mapes  []float64
}

func (m *fakeMetrics) RecordFetch(string, string) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordMessageSent(backend, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, backend+":"+symbol)
}

func (m *fakeMetrics) RecordRunMAPE(assetClass, symbol string, mape float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapes = append(m.mapes, mape)
}

func (m *fakeMetrics) RecordLatency(string, float64)     {}
func (m *fakeMetrics) RecordCacheOutcome(string, string) {}

func testBatch(symbol string, n int) *models.PriceBatch {
	points := make([]models.PricePoint, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = models.PricePoint{
			AssetClass: models.ClassEquities,
			Symbol:     symbol,
			AsOf:       base.AddDate(0, 0, i),
			Value:      100 + float64(i),
			Source:     "yahoo-finance",
		}
	}
	return &models.PriceBatch{AssetClass: models.ClassEquities, Symbol: symbol, Points: points}
}

func TestPriceProcessorClickHouseBackend(t *testing.T) {
	store := &fakeStorage{}
	metrics := &fakeMetrics{}
	proc := NewPriceProcessor(nil, store, metrics, "clickhouse", 2)

	n, err := proc.ProcessBatch(context.Background(), testBatch("AAPL", 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 points accepted, got %d", n)
	}
	if len(store.batches) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(store.batches))
	}
	if len(store.batches[0].Points) != 2 || len(store.batches[2].Points) != 1 {
		t.Fatalf("unexpected chunk sizes %d/%d", len(store.batches[0].Points), len(store.batches[2].Points))
	}
	if len(metrics.sent) != 3 || metrics.sent[0] != "clickhouse:AAPL" {
		t.Fatalf("unexpected sent metrics %v", metrics.sent)
	}
}

func TestPriceProcessorKafkaBackend(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStorage{}
	proc := NewPriceProcessor(pub, store, &fakeMetrics{}, "kafka", 1000)

	n, err := proc.ProcessBatch(context.Background(), testBatch("BTC-USD", 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 points accepted, got %d", n)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("expected 1 published batch, got %d", len(pub.batches))
	}
	if len(store.batches) != 0 {
		t.Fatalf("store should not be written in kafka mode, got %d batches", len(store.batches))
	}
}

func TestPriceProcessorUnknownBackend(t *testing.T) {
	proc := NewPriceProcessor(nil, &fakeStorage{}, &fakeMetrics{}, "postgres", 0)
	_, err := proc.ProcessBatch(context.Background(), testBatch("AAPL", 1))
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestPriceProcessorEmptyBatch(t *testing.T) {
	store := &fakeStorage{}
	proc := NewPriceProcessor(nil, store, &fakeMetrics{}, "clickhouse", 0)

	n, err := proc.ProcessBatch(context.Background(), &models.PriceBatch{Symbol: "AAPL"})
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if len(store.batches) != 0 {
		t.Fatalf("expected no writes, got %d", len(store.batches))
	}
}

func TestPriceProcessorStoreError(t *testing.T) {
	store := &fakeStorage{batchErr: errors.New("insert failed")}
	metrics := &fakeMetrics{}
	proc := NewPriceProcessor(nil, store, metrics, "clickhouse", 0)

	_, err := proc.ProcessBatch(context.Background(), testBatch("AAPL", 2))
	if err == nil || !strings.Contains(err.Error(), "process price batch") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if len(metrics.errors) != 1 || metrics.errors[0] != "process_batch" {
		t.Fatalf("unexpected error metrics %v", metrics.errors)
	}
}
