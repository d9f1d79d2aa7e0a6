package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	domsvc "ChartPulse/internal/domain/service"
	"ChartPulse/internal/services/timeseries"
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

const (
	defaultMaxConcurrent = 24
	minHistoryRows       = 10
)

// Params describe one backtest: the full series, the target region to
// predict inside it, and the rolling window geometry.
type Params struct {
	Ticker     string
	Timestamps []string
	Values     []float64
	StartDate  string
	EndDate    string
	WindowRows int
	StrideRows int

	// Progress, when set, is called after every completed window.
	Progress func(done, total int)
}

// Engine replays a series against the forecaster window by window. Each
// window gets all earlier rows as history; windows run concurrently up
// to the configured limit and failed windows are skipped.
type Engine struct {
	forecaster    domsvc.Forecaster
	maxConcurrent int
	metrics       repository.Metrics
	logger        *logger.Logger
}

func NewEngine(cfg *config.Config, log *logger.Logger, f domsvc.Forecaster, m repository.Metrics) *Engine {
	maxConcurrent := cfg.Forecast.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Engine{
		forecaster:    f,
		maxConcurrent: maxConcurrent,
		metrics:       m,
		logger:        log,
	}
}

type seriesPoint struct {
	ts    time.Time
	raw   string
	value float64
}

// Run executes the backtest and returns pooled metrics plus every
// window that produced a forecast.
func (e *Engine) Run(ctx context.Context, p *Params) (*models.BacktestResult, error) {
	if err := e.forecaster.Ready(); err != nil {
		return nil, err
	}
	if len(p.Timestamps) != len(p.Values) {
		return nil, fmt.Errorf("timestamps and values length mismatch: %d vs %d", len(p.Timestamps), len(p.Values))
	}

	windowRows := p.WindowRows
	if windowRows <= 0 {
		windowRows = 1
	}
	strideRows := p.StrideRows
	if strideRows <= 0 {
		strideRows = 1
	}

	freqCode, freqName := timeseries.DetectFrequency(p.Timestamps)
	windowStr := timeseries.WindowString(freqCode)

	start, ok := util.ParseTime(p.StartDate)
	if !ok {
		return nil, fmt.Errorf("invalid start date %q", p.StartDate)
	}
	end, ok := util.ParseTime(p.EndDate)
	if !ok {
		return nil, fmt.Errorf("invalid end date %q", p.EndDate)
	}

	points := make([]seriesPoint, 0, len(p.Timestamps))
	for i, raw := range p.Timestamps {
		ts, ok := util.ParseTime(raw)
		if !ok {
			return nil, fmt.Errorf("invalid timestamp %q", raw)
		}
		points = append(points, seriesPoint{ts: ts, raw: raw, value: p.Values[i]})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })

	// drop everything after the region end
	filtered := points[:0:len(points)]
	for _, pt := range points {
		if !pt.ts.After(end) {
			filtered = append(filtered, pt)
		}
	}

	firstTarget := -1
	for i, pt := range filtered {
		if !pt.ts.Before(start) {
			firstTarget = i
			break
		}
	}
	if firstTarget < 0 {
		return nil, fmt.Errorf("no data points in selected region")
	}
	if firstTarget < minHistoryRows {
		return nil, fmt.Errorf("not enough history data (need at least %d rows)", minHistoryRows)
	}
	cutoff := filtered[firstTarget].ts.Format("2006-01-02")

	samples := buildSamples(filtered, firstTarget, windowRows, strideRows)
	total := len(samples)
	if total == 0 {
		return nil, fmt.Errorf("no valid forecast windows could be created")
	}

	e.logger.Info("backtest started",
		logger.String("ticker", p.Ticker),
		logger.Int("points", len(filtered)),
		logger.Int("windows", total),
		logger.String("cutoff", cutoff))

	results := make([]*models.BacktestWindow, total)
	var done int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxConcurrent)
	for i := range samples {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.forecastWindow(ctx, &samples[idx])
			n := int(atomic.AddInt64(&done, 1))
			if p.Progress != nil {
				p.Progress(n, total)
			}
		}(i)
	}
	wg.Wait()

	windows := make([]models.BacktestWindow, 0, total)
	var allActuals, allForecasts []float64
	for _, w := range results {
		if w == nil {
			continue
		}
		windows = append(windows, *w)
		allActuals = append(allActuals, w.ActualValues...)
		allForecasts = append(allForecasts, w.ForecastValues...)
	}

	result := &models.BacktestResult{
		Ticker:         p.Ticker,
		CutoffDate:     cutoff,
		ForecastWindow: windowStr,
		Stride:         windowStr,
		Frequency:      freqName,
		Windows:        windows,
		MAPE:           timeseries.MAPE(allActuals, allForecasts),
		MAE:            timeseries.MAE(allActuals, allForecasts),
		TotalPoints:    len(allActuals),
	}

	e.logger.Info("backtest completed",
		logger.String("ticker", p.Ticker),
		logger.Int("windows", len(windows)),
		logger.Int("points", result.TotalPoints),
		logger.Float64("mape", result.MAPE),
		logger.Float64("mae", result.MAE))

	return result, nil
}

// buildSamples cuts the series into rolling windows starting at the
// first target row. Only full target windows are kept.
func buildSamples(points []seriesPoint, firstTarget, windowRows, strideRows int) []models.ForecastSample {
	var samples []models.ForecastSample
	for begin := firstTarget; begin+windowRows <= len(points); begin += strideRows {
		history := points[:begin]
		target := points[begin : begin+windowRows]

		sample := models.ForecastSample{
			HistoryTimestamps: make([]string, 0, len(history)),
			HistoryValues:     make([]float64, 0, len(history)),
			TargetTimestamps:  make([]string, 0, len(target)),
			TargetValues:      make([]float64, 0, len(target)),
		}
		for _, pt := range history {
			sample.HistoryTimestamps = append(sample.HistoryTimestamps, pt.raw)
			sample.HistoryValues = append(sample.HistoryValues, pt.value)
		}
		for _, pt := range target {
			sample.TargetTimestamps = append(sample.TargetTimestamps, pt.raw)
			sample.TargetValues = append(sample.TargetValues, pt.value)
		}
		samples = append(samples, sample)
	}
	return samples
}

// forecastWindow runs one window and shapes the outcome. Any failure
// drops the window rather than failing the run.
func (e *Engine) forecastWindow(ctx context.Context, sample *models.ForecastSample) *models.BacktestWindow {
	forecasts, err := e.forecaster.Forecast(ctx, sample)
	if err != nil {
		e.metrics.RecordError("forecast_window")
		e.logger.Warn("forecast window failed",
			logger.String("target_start", firstOf(sample.TargetTimestamps)),
			logger.Error(err))
		return nil
	}
	if len(forecasts) == 0 {
		return nil
	}

	actuals := sample.TargetValues
	n := len(actuals)
	if len(forecasts) < n {
		n = len(forecasts)
	}
	if n == 0 {
		return nil
	}
	actuals = actuals[:n]
	forecasts = forecasts[:n]
	timestamps := sample.TargetTimestamps
	if len(timestamps) > n {
		timestamps = timestamps[:n]
	}

	return &models.BacktestWindow{
		HistoryStart:   firstOf(sample.HistoryTimestamps),
		HistoryEnd:     lastOf(sample.HistoryTimestamps),
		TargetStart:    firstOf(sample.TargetTimestamps),
		TargetEnd:      lastOf(sample.TargetTimestamps),
		ActualValues:   actuals,
		ForecastValues: forecasts,
		Timestamps:     timestamps,
		MAPE:           timeseries.WindowMAPE(actuals, forecasts),
		MAE:            timeseries.MAE(actuals, forecasts),
	}
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func lastOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
