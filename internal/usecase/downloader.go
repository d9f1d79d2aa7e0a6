package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/services/marketdata"
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

// ClassAll selects every asset class in download and refresh runs.
const ClassAll = "all"

const (
	defaultStartDate = "2021-01-01"
	defaultEndDate   = "2025-12-31"
)

// DownloadOptions control one download pass.
type DownloadOptions struct {
	AssetClass string
	StartDate  string
	EndDate    string
	MaxAssets  int
	DryRun     bool
}

// DownloadStats summarizes a download pass.
type DownloadStats struct {
	Processed int
	Inserted  int
	Failed    int
}

// Downloader fetches configured asset histories and feeds them to the
// price processor. Asset catalog rows always go straight to storage;
// only price points follow the backend switch.
type Downloader struct {
	cfg       *config.Config
	yahoo     *marketdata.Yahoo
	crypto    *marketdata.Crypto
	forex     *marketdata.Forex
	worldbank *marketdata.WorldBank
	store     drepo.Storage
	proc      *PriceProcessor
	logger    *logger.Logger
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(
	cfg *config.Config,
	log *logger.Logger,
	yahoo *marketdata.Yahoo,
	crypto *marketdata.Crypto,
	forex *marketdata.Forex,
	worldbank *marketdata.WorldBank,
	store drepo.Storage,
	proc *PriceProcessor,
) *Downloader {
	return &Downloader{
		cfg:       cfg,
		yahoo:     yahoo,
		crypto:    crypto,
		forex:     forex,
		worldbank: worldbank,
		store:     store,
		proc:      proc,
		logger:    log,
	}
}

// BuildJobs expands the asset configuration into one job per asset.
func (d *Downloader) BuildJobs(assetClass string) ([]models.Asset, error) {
	if assetClass != ClassAll && !models.ValidAssetClass(assetClass) {
		return nil, fmt.Errorf("asset class must be one of equities, crypto, forex, macro or %q, got %q", ClassAll, assetClass)
	}
	want := func(cls string) bool { return assetClass == ClassAll || assetClass == cls }

	var jobs []models.Asset
	if want(models.ClassEquities) {
		eq, err := d.equityJobs()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, eq...)
	}
	if want(models.ClassCrypto) {
		jobs = append(jobs, d.cryptoJobs()...)
	}
	if want(models.ClassForex) {
		jobs = append(jobs, d.forexJobs()...)
	}
	if want(models.ClassMacro) {
		for _, c := range d.worldbank.Countries() {
			jobs = append(jobs, models.Asset{
				AssetClass: models.ClassMacro,
				Symbol:     c.ISO3 + "_GDP",
				Name:       c.Name + " GDP",
				Currency:   "USD",
				Source:     "world-bank",
			})
		}
	}
	return jobs, nil
}

func (d *Downloader) equityJobs() ([]models.Asset, error) {
	if path := d.cfg.Refresh.EquitiesCSV; path != "" {
		return equitiesFromCSV(path)
	}
	jobs := make([]models.Asset, 0, len(d.cfg.Refresh.Equities))
	for _, sym := range d.cfg.Refresh.Equities {
		jobs = append(jobs, models.Asset{
			AssetClass: models.ClassEquities,
			Symbol:     sym,
			Name:       sym,
			Currency:   "USD",
			Source:     "yahoo-finance",
		})
	}
	return jobs, nil
}

func (d *Downloader) cryptoJobs() []models.Asset {
	if symbols := d.cfg.Refresh.Crypto; len(symbols) > 0 {
		jobs := make([]models.Asset, 0, len(symbols))
		for _, sym := range symbols {
			jobs = append(jobs, models.Asset{
				AssetClass: models.ClassCrypto,
				Symbol:     sym,
				Name:       sym,
				Currency:   "USD",
				Source:     "yahoo-crypto",
			})
		}
		return jobs
	}
	listings := d.crypto.Listings()
	jobs := make([]models.Asset, 0, len(listings))
	for _, l := range listings {
		jobs = append(jobs, models.Asset{
			AssetClass: models.ClassCrypto,
			Symbol:     l.Symbol,
			Name:       l.Name,
			Currency:   "USD",
			Source:     "yahoo-crypto",
		})
	}
	return jobs
}

func (d *Downloader) forexJobs() []models.Asset {
	if pairs := d.cfg.Refresh.Forex; len(pairs) > 0 {
		jobs := make([]models.Asset, 0, len(pairs))
		for _, pair := range pairs {
			currency := pair
			if len(pair) >= 3 {
				currency = pair[len(pair)-3:]
			}
			jobs = append(jobs, models.Asset{
				AssetClass: models.ClassForex,
				Symbol:     pair,
				Name:       pair,
				Currency:   currency,
				Source:     "yahoo-forex",
			})
		}
		return jobs
	}
	listings := d.forex.Listings()
	jobs := make([]models.Asset, 0, len(listings))
	for _, l := range listings {
		jobs = append(jobs, models.Asset{
			AssetClass: models.ClassForex,
			Symbol:     l.Pair,
			Name:       l.Pair,
			Currency:   l.Quote,
			Source:     "yahoo-forex",
		})
	}
	return jobs
}

func equitiesFromCSV(path string) ([]models.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open constituents csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read constituents csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	symbolCol, nameCol := 0, 1
	for i, col := range rows[0] {
		switch strings.TrimSpace(col) {
		case "Symbol":
			symbolCol = i
		case "Security":
			nameCol = i
		}
	}

	var jobs []models.Asset
	for _, row := range rows[1:] {
		if symbolCol >= len(row) {
			continue
		}
		symbol := strings.TrimSpace(row[symbolCol])
		if symbol == "" {
			continue
		}
		name := symbol
		if nameCol < len(row) {
			if v := strings.TrimSpace(row[nameCol]); v != "" {
				name = v
			}
		}
		jobs = append(jobs, models.Asset{
			AssetClass: models.ClassEquities,
			Symbol:     symbol,
			Name:       name,
			Currency:   "USD",
			Source:     "yahoo-finance",
		})
	}
	return jobs, nil
}

// Download runs one pass: build jobs, fetch each series, upsert the
// asset, and hand the points to the processor. Per-asset failures are
// logged and counted, never fatal.
func (d *Downloader) Download(ctx context.Context, opts DownloadOptions) (*DownloadStats, error) {
	jobs, err := d.BuildJobs(opts.AssetClass)
	if err != nil {
		return nil, err
	}
	if opts.MaxAssets > 0 && len(jobs) > opts.MaxAssets {
		jobs = jobs[:opts.MaxAssets]
	}

	startDate, endDate := d.resolveDates(opts.StartDate, opts.EndDate)
	startDT, ok := util.ParseTime(startDate)
	if !ok {
		return nil, fmt.Errorf("invalid start date %q", startDate)
	}
	endDT, ok := util.ParseTime(endDate)
	if !ok {
		return nil, fmt.Errorf("invalid end date %q", endDate)
	}
	// Include the whole end day.
	endDT = endDT.AddDate(0, 0, 1).Add(-time.Second)

	d.logger.Info("download plan",
		logger.Int("assets", len(jobs)),
		logger.String("start_date", startDate),
		logger.String("end_date", endDate))

	if opts.DryRun {
		for i, job := range jobs {
			if i == 10 {
				d.logger.Info("download plan truncated", logger.Int("remaining", len(jobs)-i))
				break
			}
			d.logger.Info("planned asset",
				logger.String("asset_class", job.AssetClass),
				logger.String("symbol", job.Symbol))
		}
		return &DownloadStats{}, nil
	}

	stats := &DownloadStats{}
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		inserted, err := d.downloadOne(ctx, job, startDate, endDate, startDT.UTC(), endDT.UTC())
		if err != nil {
			stats.Failed++
			d.logger.Warn("asset download failed",
				logger.String("asset_class", job.AssetClass),
				logger.String("symbol", job.Symbol),
				logger.Error(err))
			continue
		}
		stats.Processed++
		stats.Inserted += inserted
		d.logger.Debug("asset stored",
			logger.String("asset_class", job.AssetClass),
			logger.String("symbol", job.Symbol),
			logger.Int("rows", inserted))
	}

	d.logger.Info("download completed",
		logger.Int("processed", stats.Processed),
		logger.Int("failed", stats.Failed),
		logger.Int("rows", stats.Inserted))
	return stats, nil
}

func (d *Downloader) resolveDates(startDate, endDate string) (string, string) {
	if startDate == "" {
		startDate = d.cfg.Refresh.StartDate
	}
	if startDate == "" {
		startDate = defaultStartDate
	}
	if endDate == "" {
		endDate = d.cfg.Refresh.EndDate
	}
	if endDate == "" {
		endDate = defaultEndDate
	}
	return startDate, endDate
}

func (d *Downloader) downloadOne(ctx context.Context, job models.Asset, startDate, endDate string, startDT, endDT time.Time) (int, error) {
	timestamps, values, err := d.fetchSeries(ctx, job, startDate, endDate)
	if err != nil {
		return 0, err
	}
	if err := d.store.UpsertAsset(ctx, &job); err != nil {
		return 0, err
	}

	batch := buildBatch(job, timestamps, values, startDT, endDT)
	if len(batch.Points) == 0 {
		return 0, nil
	}
	return d.proc.ProcessBatch(ctx, batch)
}

func (d *Downloader) fetchSeries(ctx context.Context, job models.Asset, startDate, endDate string) ([]string, []float64, error) {
	switch job.AssetClass {
	case models.ClassEquities:
		data, err := d.yahoo.FetchSeries(ctx, job.Symbol, startDate, endDate)
		if err != nil {
			return nil, nil, err
		}
		return data.Timestamps, data.Values, nil
	case models.ClassCrypto:
		data, err := d.crypto.FetchSeries(ctx, job.Symbol, startDate, endDate)
		if err != nil {
			return nil, nil, err
		}
		return data.Timestamps, data.Values, nil
	case models.ClassForex:
		data, err := d.forex.FetchSeries(ctx, job.Symbol, startDate, endDate)
		if err != nil {
			return nil, nil, err
		}
		return data.Timestamps, data.Values, nil
	case models.ClassMacro:
		iso3 := strings.TrimSuffix(job.Symbol, "_GDP")
		startYear := util.ParseIntDefault(startDate[:4], 0)
		endYear := util.ParseIntDefault(endDate[:4], 0)
		data, err := d.worldbank.FetchGDP(ctx, iso3, "", startYear, endYear)
		if err != nil {
			return nil, nil, err
		}
		return data.Timestamps, data.Values, nil
	default:
		return nil, nil, fmt.Errorf("unsupported asset class %s", job.AssetClass)
	}
}

func buildBatch(job models.Asset, timestamps []string, values []float64, start, end time.Time) *models.PriceBatch {
	n := len(timestamps)
	if len(values) < n {
		n = len(values)
	}
	points := make([]models.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		ts, ok := util.ParseTime(timestamps[i])
		if !ok {
			continue
		}
		ts = ts.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		points = append(points, models.PricePoint{
			AssetClass: job.AssetClass,
			Symbol:     job.Symbol,
			AsOf:       ts,
			Value:      values[i],
			Currency:   job.Currency,
			Source:     job.Source,
		})
	}
	return &models.PriceBatch{AssetClass: job.AssetClass, Symbol: job.Symbol, Points: points}
}
