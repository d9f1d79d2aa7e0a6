package usecase

import (
	"context"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"
	"ChartPulse/internal/services/backtest"
	"ChartPulse/internal/services/timeseries"
)

// Backtest statuses broadcast to progress subscribers.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// BacktestRunner executes interactive backtests and merges the forecast
// overlay into the submitted series.
type BacktestRunner struct {
	engine   *backtest.Engine
	notifier drepo.ProgressNotifier
}

// NewBacktestRunner creates a new BacktestRunner instance.
func NewBacktestRunner(engine *backtest.Engine, notifier drepo.ProgressNotifier) *BacktestRunner {
	return &BacktestRunner{engine: engine, notifier: notifier}
}

// Run backtests the submitted series window by window and attaches the
// overlay. Progress frames go out per completed window.
func (u *BacktestRunner) Run(ctx context.Context, req *models.BacktestRequest) (*models.BacktestResult, error) {
	params := &backtest.Params{
		Ticker:     req.Ticker,
		Timestamps: req.Timestamps,
		Values:     req.Values,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		WindowRows: 1,
		StrideRows: 1,
		Progress: func(done, total int) {
			u.broadcast(&models.RunProgress{
				Symbol: req.Ticker,
				Status: StatusRunning,
				Done:   done,
				Total:  total,
			})
		},
	}

	result, err := u.engine.Run(ctx, params)
	if err != nil {
		u.broadcast(&models.RunProgress{
			Symbol: req.Ticker,
			Status: StatusFailed,
			Error:  err.Error(),
		})
		return nil, err
	}

	result.Overlay = timeseries.Overlay(req.Timestamps, req.Values, result.Windows)
	u.broadcast(&models.RunProgress{
		Symbol: req.Ticker,
		Status: StatusSuccess,
		Done:   len(result.Windows),
		Total:  len(result.Windows),
		MAPE:   result.MAPE,
	})
	return result, nil
}

func (u *BacktestRunner) broadcast(p *models.RunProgress) {
	if u.notifier != nil {
		u.notifier.Broadcast(p)
	}
}
