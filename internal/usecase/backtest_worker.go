package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/services/backtest"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/queue"
	"ChartPulse/pkg/util"
)

const (
	defaultJobType   = "backtest.run"
	defaultMinPoints = 30
	unknownGeometry  = "unknown"
)

// NewRunKey builds a unique identifier for one backtest attempt.
// Re-enqueueing the same asset always produces a fresh key.
func NewRunKey(assetClass, symbol string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s:%s:%s", assetClass, symbol, hex[:16])
}

// BacktestRunJob consumes queued backtest jobs: load the stored series,
// replay it against the forecaster, persist the run. Data errors are
// recorded as failed runs and complete the job; infrastructure errors
// bubble up so the queue retries and eventually dead-letters them.
type BacktestRunJob struct {
	store     drepo.Storage
	engine    *backtest.Engine
	notifier  drepo.ProgressNotifier
	metrics   drepo.Metrics
	logger    *logger.Logger
	jobType   string
	minPoints int
}

// NewBacktestRunJob creates the queue job handler.
func NewBacktestRunJob(
	store drepo.Storage,
	engine *backtest.Engine,
	notifier drepo.ProgressNotifier,
	metrics drepo.Metrics,
	log *logger.Logger,
	jobType string,
	minPoints int,
) *BacktestRunJob {
	if jobType == "" {
		jobType = defaultJobType
	}
	if minPoints <= 0 {
		minPoints = defaultMinPoints
	}
	return &BacktestRunJob{
		store:     store,
		engine:    engine,
		notifier:  notifier,
		metrics:   metrics,
		logger:    log,
		jobType:   jobType,
		minPoints: minPoints,
	}
}

func (j *BacktestRunJob) Name() string { return "backtest-run" }
func (j *BacktestRunJob) Type() string { return j.jobType }

func (j *BacktestRunJob) Handle(ctx context.Context, payload interface{}) error {
	job, err := queue.ParsePayload[models.BacktestJob](payload)
	if err != nil {
		return fmt.Errorf("parse backtest job: %w", err)
	}

	startDT, ok := util.ParseTime(job.StartDate)
	if !ok {
		return fmt.Errorf("invalid job start date %q", job.StartDate)
	}
	endDT, ok := util.ParseTime(job.EndDate)
	if !ok {
		return fmt.Errorf("invalid job end date %q", job.EndDate)
	}
	runKey := job.RunKey
	if runKey == "" {
		runKey = NewRunKey(job.AssetClass, job.Symbol)
	}
	backtestStart := job.BacktestStartDate
	if backtestStart == "" {
		backtestStart = job.StartDate
	}

	timestamps, values, err := j.store.SeriesFor(ctx, job.AssetClass, job.Symbol, startDT.UTC(), endDT.UTC())
	if err != nil {
		return fmt.Errorf("load series for %s/%s: %w", job.AssetClass, job.Symbol, err)
	}
	if len(timestamps) < j.minPoints {
		j.logger.Info("skipping backtest, insufficient data",
			logger.String("asset_class", job.AssetClass),
			logger.String("symbol", job.Symbol),
			logger.Int("points", len(timestamps)),
			logger.Int("min_points", j.minPoints))
		j.broadcast(&models.RunProgress{
			AssetClass: job.AssetClass,
			Symbol:     job.Symbol,
			RunKey:     runKey,
			Status:     StatusSkipped,
			Error:      fmt.Sprintf("insufficient data: %d points", len(timestamps)),
		})
		return nil
	}

	j.logger.Info("running backtest",
		logger.String("asset_class", job.AssetClass),
		logger.String("symbol", job.Symbol),
		logger.String("run_key", runKey),
		logger.Int("points", len(timestamps)),
		logger.String("eval_start", backtestStart))

	params := &backtest.Params{
		Ticker:     job.Symbol,
		Timestamps: timestamps,
		Values:     values,
		StartDate:  backtestStart,
		EndDate:    job.EndDate,
		WindowRows: job.WindowRows,
		StrideRows: job.StrideRows,
		Progress: func(done, total int) {
			j.broadcast(&models.RunProgress{
				AssetClass: job.AssetClass,
				Symbol:     job.Symbol,
				RunKey:     runKey,
				Status:     StatusRunning,
				Done:       done,
				Total:      total,
			})
		},
	}

	runWeek := util.ISOWeek(time.Now().UTC())
	result, err := j.engine.Run(ctx, params)
	if err != nil {
		record := &models.RunRecord{
			AssetClass:     job.AssetClass,
			Symbol:         job.Symbol,
			RunKey:         runKey,
			StartDate:      backtestStart,
			EndDate:        job.EndDate,
			ForecastWindow: unknownGeometry,
			Stride:         unknownGeometry,
			Frequency:      unknownGeometry,
			Status:         StatusFailed,
			RunWeek:        runWeek,
			Error:          err.Error(),
		}
		if storeErr := j.store.StoreRun(ctx, record); storeErr != nil {
			return fmt.Errorf("store failed run %s: %w", runKey, storeErr)
		}
		j.logger.Warn("backtest failed",
			logger.String("run_key", runKey),
			logger.Error(err))
		j.broadcast(&models.RunProgress{
			AssetClass: job.AssetClass,
			Symbol:     job.Symbol,
			RunKey:     runKey,
			Status:     StatusFailed,
			Error:      err.Error(),
		})
		return nil
	}

	record := &models.RunRecord{
		AssetClass:     job.AssetClass,
		Symbol:         job.Symbol,
		RunKey:         runKey,
		StartDate:      backtestStart,
		EndDate:        job.EndDate,
		ForecastWindow: result.ForecastWindow,
		Stride:         result.Stride,
		Frequency:      result.Frequency,
		Status:         StatusSuccess,
		MAPE:           result.MAPE,
		MAE:            result.MAE,
		TotalPoints:    result.TotalPoints,
		RunWeek:        runWeek,
		CutoffDate:     result.CutoffDate,
		Windows:        storedWindows(result.Windows),
	}
	if err := j.store.StoreRun(ctx, record); err != nil {
		return fmt.Errorf("store run %s: %w", runKey, err)
	}

	j.metrics.RecordRunMAPE(job.AssetClass, job.Symbol, result.MAPE)
	j.logger.Info("backtest stored",
		logger.String("run_key", runKey),
		logger.Float64("mape", result.MAPE),
		logger.Float64("mae", result.MAE),
		logger.Int("windows", len(result.Windows)))
	j.broadcast(&models.RunProgress{
		AssetClass: job.AssetClass,
		Symbol:     job.Symbol,
		RunKey:     runKey,
		Status:     StatusSuccess,
		Done:       len(result.Windows),
		Total:      len(result.Windows),
		MAPE:       result.MAPE,
	})
	return nil
}

func (j *BacktestRunJob) broadcast(p *models.RunProgress) {
	if j.notifier != nil {
		j.notifier.Broadcast(p)
	}
}

// storedWindows keeps the first actual/forecast of each window, which is
// the whole window under the default single-row geometry.
func storedWindows(windows []models.BacktestWindow) []models.StoredWindow {
	out := make([]models.StoredWindow, 0, len(windows))
	for _, w := range windows {
		if len(w.ActualValues) == 0 || len(w.ForecastValues) == 0 {
			continue
		}
		out = append(out, models.StoredWindow{
			HistoryStart:  w.HistoryStart,
			HistoryEnd:    w.HistoryEnd,
			TargetStart:   w.TargetStart,
			TargetEnd:     w.TargetEnd,
			ActualValue:   w.ActualValues[0],
			ForecastValue: w.ForecastValues[0],
			Timestamps:    w.Timestamps,
		})
	}
	return out
}

var _ queue.Job = (*BacktestRunJob)(nil)
