package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/services/marketdata"
	"ChartPulse/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Refresh.Equities = []string{"AAPL", "MSFT"}
	cfg.Refresh.Crypto = []string{"BTC-USD"}
	cfg.Refresh.Forex = []string{"EURUSD"}
	cfg.Upstream.WorldBank.Countries = append(cfg.Upstream.WorldBank.Countries, struct {
		Name string `yaml:"name"`
		ISO3 string `yaml:"iso3"`
		ISO2 string `yaml:"iso2"`
	}{Name: "United States", ISO3: "USA", ISO2: "US"})
	return cfg
}

func newTestDownloader(t *testing.T, cfg *config.Config, store *fakeStorage) *Downloader {
	t.Helper()
	log := newTestLogger(t)
	metrics := &fakeMetrics{}
	yahoo := marketdata.NewYahoo(cfg, log, nil, metrics)
	proc := NewPriceProcessor(nil, store, metrics, "clickhouse", 0)
	return NewDownloader(cfg, log,
		yahoo,
		marketdata.NewCrypto(yahoo),
		marketdata.NewForex(yahoo),
		marketdata.NewWorldBank(cfg, log, metrics),
		store, proc)
}

func TestDownloaderBuildJobsAll(t *testing.T) {
	d := newTestDownloader(t, testConfig(), &fakeStorage{})

	jobs, err := d.BuildJobs(ClassAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(jobs))
	}

	byClass := map[string]int{}
	for _, job := range jobs {
		byClass[job.AssetClass]++
	}
	if byClass[models.ClassEquities] != 2 || byClass[models.ClassCrypto] != 1 ||
		byClass[models.ClassForex] != 1 || byClass[models.ClassMacro] != 1 {
		t.Fatalf("unexpected class split %v", byClass)
	}

	macro := jobs[len(jobs)-1]
	if macro.Symbol != "USA_GDP" || macro.Name != "United States GDP" || macro.Source != "world-bank" {
		t.Fatalf("unexpected macro job %+v", macro)
	}
}

func TestDownloaderBuildJobsForexCurrency(t *testing.T) {
	d := newTestDownloader(t, testConfig(), &fakeStorage{})

	jobs, err := d.BuildJobs(models.ClassForex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 forex job, got %d", len(jobs))
	}
	if jobs[0].Symbol != "EURUSD" || jobs[0].Currency != "USD" {
		t.Fatalf("expected quote currency USD, got %+v", jobs[0])
	}
}

func TestDownloaderBuildJobsInvalidClass(t *testing.T) {
	d := newTestDownloader(t, testConfig(), &fakeStorage{})
	_, err := d.BuildJobs("bonds")
	if err == nil || !strings.Contains(err.Error(), "asset class must be one of") {
		t.Fatalf("expected class validation error, got %v", err)
	}
}

func TestDownloaderBuildJobsFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sp500.csv")
	csv := "Symbol,Security,GICS Sector\nAAPL,Apple Inc.,Information Technology\n,Missing Symbol,Energy\nMMM,3M,Industrials\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cfg := testConfig()
	cfg.Refresh.EquitiesCSV = path
	d := newTestDownloader(t, cfg, &fakeStorage{})

	jobs, err := d.BuildJobs(models.ClassEquities)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected blank symbol skipped, got %d jobs", len(jobs))
	}
	if jobs[0].Symbol != "AAPL" || jobs[0].Name != "Apple Inc." {
		t.Fatalf("expected name from Security column, got %+v", jobs[0])
	}
	if jobs[1].Symbol != "MMM" || jobs[1].Name != "3M" {
		t.Fatalf("unexpected second job %+v", jobs[1])
	}
}

func TestBuildBatchFiltersRange(t *testing.T) {
	job := models.Asset{AssetClass: models.ClassEquities, Symbol: "AAPL", Currency: "USD", Source: "yahoo-finance"}
	timestamps := []string{
		"2023-12-29T00:00:00",
		"2024-01-02T00:00:00",
		"not-a-date",
		"2024-01-03T00:00:00",
		"2024-02-01T00:00:00",
	}
	values := []float64{180, 185.5, 400, 184.25, 190}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	batch := buildBatch(job, timestamps, values, start, end)

	if len(batch.Points) != 2 {
		t.Fatalf("expected 2 points inside range, got %d", len(batch.Points))
	}
	if batch.Points[0].Value != 185.5 || batch.Points[1].Value != 184.25 {
		t.Fatalf("unexpected values %+v", batch.Points)
	}
	if batch.Points[0].Source != "yahoo-finance" || batch.Points[0].Currency != "USD" {
		t.Fatalf("asset metadata not carried onto points: %+v", batch.Points[0])
	}
}

func TestDownloaderDryRun(t *testing.T) {
	store := &fakeStorage{}
	d := newTestDownloader(t, testConfig(), store)

	stats, err := d.Download(context.Background(), DownloadOptions{AssetClass: ClassAll, DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 0 || stats.Inserted != 0 || stats.Failed != 0 {
		t.Fatalf("dry run must not execute, got %+v", stats)
	}
	if len(store.assets) != 0 || len(store.batches) != 0 {
		t.Fatalf("dry run must not touch storage")
	}
}

func TestDownloaderDownloadEquities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"chart": {
				"result": [{
					"meta": {"symbol": "AAPL", "currency": "USD"},
					"timestamp": [1704153600, 1704240000],
					"indicators": {"quote": [{"close": [185.5, 184.25]}]}
				}],
				"error": null
			}
		}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Refresh.Equities = []string{"AAPL"}
	cfg.Upstream.Yahoo.BaseURL = srv.URL
	store := &fakeStorage{}
	d := newTestDownloader(t, cfg, store)

	stats, err := d.Download(context.Background(), DownloadOptions{
		AssetClass: models.ClassEquities,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-05",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 0 || stats.Inserted != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.assets) != 1 || store.assets[0].Symbol != "AAPL" {
		t.Fatalf("expected asset upsert, got %+v", store.assets)
	}
	if len(store.batches) != 1 || len(store.batches[0].Points) != 2 {
		t.Fatalf("expected one stored batch with 2 points, got %+v", store.batches)
	}
}

func TestDownloaderDownloadCountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart": {"result": [], "error": {"code": "Not Found", "description": "No data"}}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Refresh.Equities = []string{"NOPE"}
	cfg.Upstream.Yahoo.BaseURL = srv.URL
	store := &fakeStorage{}
	d := newTestDownloader(t, cfg, store)

	stats, err := d.Download(context.Background(), DownloadOptions{AssetClass: models.ClassEquities})
	if err != nil {
		t.Fatalf("per-asset failures must not abort the pass: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.assets) != 0 {
		t.Fatalf("failed asset must not be upserted")
	}
}
