package usecase

import (
	"context"
	"fmt"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/pkg/cache"
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/queue"
	"ChartPulse/pkg/util"
)

const defaultRetainWeeks = 12

// refreshLockKey guards against two refresh cycles running at once, for
// example the weekly cron firing while an operator run is in flight.
const refreshLockKey = "refresh:running"

const refreshLockTTL = 2 * time.Hour

// RefreshOptions control one refresh cycle.
type RefreshOptions struct {
	AssetClass        string
	Symbols           []string // optional filter; empty means every configured asset
	MaxAssets         int
	StartDate         string
	EndDate           string
	BacktestStartDate string
	WindowRows        int
	StrideRows        int
	SkipDownload      bool
	SkipBacktests     bool
	RetainWeeks       int
	DryRun            bool
}

// Refresher runs the weekly workflow: download fresh history, enqueue
// backtest jobs for the workers, prune runs past the retention horizon.
type Refresher struct {
	cfg        *config.Config
	downloader *Downloader
	queue      queue.QueueService
	store      drepo.Storage
	cache      cache.Service
	logger     *logger.Logger
}

// NewRefresher creates a new Refresher instance. The cache is optional;
// without one the overlap lock is skipped.
func NewRefresher(
	cfg *config.Config,
	log *logger.Logger,
	downloader *Downloader,
	q queue.QueueService,
	store drepo.Storage,
	c cache.Service,
) *Refresher {
	return &Refresher{
		cfg:        cfg,
		downloader: downloader,
		queue:      q,
		store:      store,
		cache:      c,
		logger:     log,
	}
}

// Run executes the full cycle for the selected classes.
func (r *Refresher) Run(ctx context.Context, opts RefreshOptions) error {
	if opts.AssetClass != ClassAll && !models.ValidAssetClass(opts.AssetClass) {
		return fmt.Errorf("asset class must be one of equities, crypto, forex, macro or %q, got %q", ClassAll, opts.AssetClass)
	}
	retainWeeks := opts.RetainWeeks
	if retainWeeks <= 0 {
		retainWeeks = r.cfg.Refresh.RetainWeeks
	}
	if retainWeeks <= 0 {
		retainWeeks = defaultRetainWeeks
	}

	r.logger.Info("refresh plan",
		logger.String("asset_class", opts.AssetClass),
		logger.Int("max_assets", opts.MaxAssets),
		logger.Bool("skip_download", opts.SkipDownload),
		logger.Bool("skip_backtests", opts.SkipBacktests),
		logger.Int("retain_weeks", retainWeeks))

	if opts.DryRun {
		r.logger.Info("dry run enabled, exiting before execution")
		return nil
	}

	if unlock, err := r.acquireLock(ctx); err != nil {
		return err
	} else if unlock != nil {
		defer unlock()
	}

	if !opts.SkipDownload {
		r.logger.Info("step 1/3: downloading latest data")
		if _, err := r.downloader.Download(ctx, DownloadOptions{
			AssetClass: opts.AssetClass,
			StartDate:  opts.StartDate,
			EndDate:    opts.EndDate,
			MaxAssets:  opts.MaxAssets,
		}); err != nil {
			return fmt.Errorf("download step: %w", err)
		}
	} else {
		r.logger.Info("step 1/3: download skipped")
	}

	if !opts.SkipBacktests {
		r.logger.Info("step 2/3: enqueueing backtests")
		keys, err := r.EnqueueBacktests(ctx, opts)
		if err != nil {
			return fmt.Errorf("enqueue step: %w", err)
		}
		r.logger.Info("backtests enqueued", logger.Int("jobs", len(keys)))
	} else {
		r.logger.Info("step 2/3: backtests skipped")
	}

	r.logger.Info("step 3/3: pruning old runs")
	cutoff := time.Now().UTC().Add(-time.Duration(retainWeeks) * 7 * 24 * time.Hour)
	for _, cls := range expandClasses(opts.AssetClass) {
		if err := r.store.PruneRuns(ctx, cls, cutoff); err != nil {
			return fmt.Errorf("prune step: %w", err)
		}
	}

	r.logger.Info("refresh completed")
	return nil
}

// acquireLock takes the shared refresh lock. A cache outage downgrades
// to an unguarded run rather than blocking the refresh.
func (r *Refresher) acquireLock(ctx context.Context) (func(), error) {
	if r.cache == nil {
		return nil, nil
	}
	ok, err := r.cache.TryLock(ctx, refreshLockKey, refreshLockTTL)
	if err != nil {
		r.logger.Warn("refresh lock unavailable, continuing without it", logger.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, fmt.Errorf("another refresh run holds the lock %q", refreshLockKey)
	}
	return func() {
		if err := r.cache.Unlock(context.Background(), refreshLockKey); err != nil {
			r.logger.Warn("release refresh lock", logger.Error(err))
		}
	}, nil
}

// EnqueueBacktests queues one backtest job per selected asset and
// returns the generated run keys.
func (r *Refresher) EnqueueBacktests(ctx context.Context, opts RefreshOptions) ([]string, error) {
	jobs, err := r.downloader.BuildJobs(opts.AssetClass)
	if err != nil {
		return nil, err
	}
	if len(opts.Symbols) > 0 {
		want := make(map[string]bool, len(opts.Symbols))
		for _, s := range opts.Symbols {
			want[s] = true
		}
		filtered := jobs[:0:len(jobs)]
		for _, job := range jobs {
			if want[job.Symbol] {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	if opts.MaxAssets > 0 && len(jobs) > opts.MaxAssets {
		jobs = jobs[:opts.MaxAssets]
	}

	startDate, endDate := r.downloader.resolveDates(opts.StartDate, opts.EndDate)
	backtestStart := opts.BacktestStartDate
	if backtestStart == "" {
		backtestStart = startDate
	}
	if err := validateEvalWindow(startDate, backtestStart, endDate); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(jobs))
	for _, job := range jobs {
		runKey := NewRunKey(job.AssetClass, job.Symbol)
		payload := models.BacktestJob{
			AssetClass:        job.AssetClass,
			Symbol:            job.Symbol,
			Name:              job.Name,
			StartDate:         startDate,
			EndDate:           endDate,
			BacktestStartDate: backtestStart,
			WindowRows:        opts.WindowRows,
			StrideRows:        opts.StrideRows,
			RunKey:            runKey,
		}
		if err := r.queue.PublishMessage(ctx, r.cfg.Queue.Name, payload); err != nil {
			return keys, fmt.Errorf("enqueue %s/%s: %w", job.AssetClass, job.Symbol, err)
		}
		keys = append(keys, runKey)
	}
	return keys, nil
}

func validateEvalWindow(startDate, backtestStart, endDate string) error {
	startDT, ok := util.ParseTime(startDate)
	if !ok {
		return fmt.Errorf("invalid start date %q", startDate)
	}
	endDT, ok := util.ParseTime(endDate)
	if !ok {
		return fmt.Errorf("invalid end date %q", endDate)
	}
	evalDT, ok := util.ParseTime(backtestStart)
	if !ok {
		return fmt.Errorf("invalid backtest start date %q", backtestStart)
	}
	if evalDT.Before(startDT) {
		return fmt.Errorf("backtest start date %s must be on or after the history start date %s", backtestStart, startDate)
	}
	if !evalDT.Before(endDT) {
		return fmt.Errorf("backtest start date %s must be before the end date %s", backtestStart, endDate)
	}
	return nil
}

func expandClasses(assetClass string) []string {
	if assetClass == ClassAll {
		return []string{models.ClassEquities, models.ClassCrypto, models.ClassForex, models.ClassMacro}
	}
	return []string{assetClass}
}
