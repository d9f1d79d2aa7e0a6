package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/cache"
	"ChartPulse/pkg/config"
)

type queuedMessage struct {
	msgType string
	job     models.BacktestJob
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []queuedMessage
	err      error
}

func (q *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	job, ok := payload.(models.BacktestJob)
	if !ok {
		return nil
	}
	q.messages = append(q.messages, queuedMessage{msgType: msgType, job: job})
	return nil
}

func newTestRefresher(t *testing.T, cfg *config.Config, store *fakeStorage, q *fakeQueue) *Refresher {
	t.Helper()
	cfg.Queue.Name = "backtest.run"
	d := newTestDownloader(t, cfg, store)
	return NewRefresher(cfg, newTestLogger(t), d, q, store, nil)
}

func TestRefresherEnqueueBacktests(t *testing.T) {
	store := &fakeStorage{}
	q := &fakeQueue{}
	r := newTestRefresher(t, testConfig(), store, q)

	keys, err := r.EnqueueBacktests(context.Background(), RefreshOptions{
		AssetClass:        ClassAll,
		StartDate:         "2024-01-01",
		EndDate:           "2024-06-30",
		BacktestStartDate: "2024-05-01",
		WindowRows:        1,
		StrideRows:        1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 5 || len(q.messages) != 5 {
		t.Fatalf("expected 5 queued jobs, got %d keys %d messages", len(keys), len(q.messages))
	}

	first := q.messages[0]
	if first.msgType != "backtest.run" {
		t.Fatalf("unexpected message type %q", first.msgType)
	}
	if first.job.RunKey != keys[0] {
		t.Fatalf("returned key %q does not match queued %q", keys[0], first.job.RunKey)
	}
	if !strings.HasPrefix(first.job.RunKey, first.job.AssetClass+":"+first.job.Symbol+":") {
		t.Fatalf("unexpected run key shape %q", first.job.RunKey)
	}
	if first.job.StartDate != "2024-01-01" || first.job.BacktestStartDate != "2024-05-01" {
		t.Fatalf("dates not carried onto job %+v", first.job)
	}
}

func TestRefresherEnqueueSymbolsFilter(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRefresher(t, testConfig(), &fakeStorage{}, q)

	keys, err := r.EnqueueBacktests(context.Background(), RefreshOptions{
		AssetClass: models.ClassEquities,
		Symbols:    []string{"MSFT"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || q.messages[0].job.Symbol != "MSFT" {
		t.Fatalf("expected only MSFT queued, got %+v", q.messages)
	}
	// evaluation start defaults to the history start
	if q.messages[0].job.BacktestStartDate != "2024-01-01" {
		t.Fatalf("unexpected default eval start %q", q.messages[0].job.BacktestStartDate)
	}
}

func TestRefresherEnqueueMaxAssets(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRefresher(t, testConfig(), &fakeStorage{}, q)

	keys, err := r.EnqueueBacktests(context.Background(), RefreshOptions{
		AssetClass: ClassAll,
		MaxAssets:  2,
		StartDate:  "2024-01-01",
		EndDate:    "2024-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected cap at 2 jobs, got %d", len(keys))
	}
}

func TestRefresherEnqueueDateValidation(t *testing.T) {
	r := newTestRefresher(t, testConfig(), &fakeStorage{}, &fakeQueue{})

	_, err := r.EnqueueBacktests(context.Background(), RefreshOptions{
		AssetClass:        ClassAll,
		StartDate:         "2024-01-01",
		EndDate:           "2024-06-30",
		BacktestStartDate: "2023-12-01",
	})
	if err == nil || !strings.Contains(err.Error(), "must be on or after the history start date") {
		t.Fatalf("expected eval start lower bound error, got %v", err)
	}

	_, err = r.EnqueueBacktests(context.Background(), RefreshOptions{
		AssetClass:        ClassAll,
		StartDate:         "2024-01-01",
		EndDate:           "2024-06-30",
		BacktestStartDate: "2025-01-01",
	})
	if err == nil || !strings.Contains(err.Error(), "must be before the end date") {
		t.Fatalf("expected eval start upper bound error, got %v", err)
	}
}

func TestRefresherRunPrunesEveryClass(t *testing.T) {
	store := &fakeStorage{}
	r := newTestRefresher(t, testConfig(), store, &fakeQueue{})

	err := r.Run(context.Background(), RefreshOptions{
		AssetClass:    ClassAll,
		SkipDownload:  true,
		SkipBacktests: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.pruned) != 4 {
		t.Fatalf("expected prune per class, got %v", store.pruned)
	}
}

func TestRefresherRunSingleClass(t *testing.T) {
	store := &fakeStorage{}
	q := &fakeQueue{}
	r := newTestRefresher(t, testConfig(), store, q)

	err := r.Run(context.Background(), RefreshOptions{
		AssetClass:   models.ClassCrypto,
		SkipDownload: true,
		StartDate:    "2024-01-01",
		EndDate:      "2024-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.messages) != 1 || q.messages[0].job.AssetClass != models.ClassCrypto {
		t.Fatalf("expected one crypto job queued, got %+v", q.messages)
	}
	if len(store.pruned) != 1 || store.pruned[0] != models.ClassCrypto {
		t.Fatalf("expected crypto prune only, got %v", store.pruned)
	}
}

func TestRefresherRunDryRun(t *testing.T) {
	store := &fakeStorage{}
	q := &fakeQueue{}
	r := newTestRefresher(t, testConfig(), store, q)

	if err := r.Run(context.Background(), RefreshOptions{AssetClass: ClassAll, DryRun: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.messages) != 0 || len(store.pruned) != 0 || len(store.assets) != 0 {
		t.Fatalf("dry run must not execute any step")
	}
}

func TestRefresherRunInvalidClass(t *testing.T) {
	r := newTestRefresher(t, testConfig(), &fakeStorage{}, &fakeQueue{})
	err := r.Run(context.Background(), RefreshOptions{AssetClass: "bonds"})
	if err == nil || !strings.Contains(err.Error(), "asset class must be one of") {
		t.Fatalf("expected class validation error, got %v", err)
	}
}

type fakeLockCache struct {
	mu       sync.Mutex
	held     bool
	unlocked bool
}

func (c *fakeLockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (c *fakeLockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return cache.ErrCacheMiss
}

func (c *fakeLockCache) Delete(ctx context.Context, keys ...string) error { return nil }

func (c *fakeLockCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return false, nil
}

func (c *fakeLockCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return false, nil
	}
	c.held = true
	return true, nil
}

func (c *fakeLockCache) Unlock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
	c.unlocked = true
	return nil
}

func TestRefresherRunLockHeld(t *testing.T) {
	cfg := testConfig()
	store := &fakeStorage{}
	fc := &fakeLockCache{held: true}
	d := newTestDownloader(t, cfg, store)
	r := NewRefresher(cfg, newTestLogger(t), d, &fakeQueue{}, store, fc)

	err := r.Run(context.Background(), RefreshOptions{
		AssetClass:    ClassAll,
		SkipDownload:  true,
		SkipBacktests: true,
	})
	if err == nil || !strings.Contains(err.Error(), "holds the lock") {
		t.Fatalf("expected lock error, got %v", err)
	}
	if len(store.pruned) != 0 {
		t.Fatalf("locked run must not prune, got %v", store.pruned)
	}
}

func TestRefresherRunReleasesLock(t *testing.T) {
	cfg := testConfig()
	store := &fakeStorage{}
	fc := &fakeLockCache{}
	d := newTestDownloader(t, cfg, store)
	r := NewRefresher(cfg, newTestLogger(t), d, &fakeQueue{}, store, fc)

	err := r.Run(context.Background(), RefreshOptions{
		AssetClass:    ClassAll,
		SkipDownload:  true,
		SkipBacktests: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.held || !fc.unlocked {
		t.Fatalf("lock must be released after the run, held=%v unlocked=%v", fc.held, fc.unlocked)
	}
}
