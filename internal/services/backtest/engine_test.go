package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)            {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordMessageSent(string, string)      {}
func (nopMetrics) RecordRunMAPE(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)         {}
func (nopMetrics) RecordCacheOutcome(string, string)     {}

// fakeForecaster answers actual+offset, optionally failing chosen
// target start dates.
type fakeForecaster struct {
	mu       sync.Mutex
	calls    int
	offset   float64
	failOn   map[string]bool
	notReady error
}

func (f *fakeForecaster) Ready() error { return f.notReady }

func (f *fakeForecaster) Forecast(_ context.Context, sample *models.ForecastSample) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn[sample.TargetTimestamps[0]] {
		return nil, errors.New("unexpected status 502: upstream gone")
	}
	out := make([]float64, len(sample.TargetValues))
	for i, v := range sample.TargetValues {
		out[i] = v + f.offset
	}
	return out, nil
}

func newTestEngine(t *testing.T, f *fakeForecaster) *Engine {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &Engine{forecaster: f, maxConcurrent: 4, metrics: nopMetrics{}, logger: log}
}

func dailySeries(n int) ([]string, []float64) {
	timestamps := make([]string, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		timestamps[i] = fmt.Sprintf("2024-01-%02d", i+1)
		values[i] = 100 + float64(i)
	}
	return timestamps, values
}

func TestRunBacktest(t *testing.T) {
	timestamps, values := dailySeries(15)
	f := &fakeForecaster{offset: 1}
	e := newTestEngine(t, f)

	var progressCalls, lastDone int64
	result, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-11",
		EndDate:    "2024-01-15",
		Progress: func(done, total int) {
			atomic.AddInt64(&progressCalls, 1)
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
			if done == 5 {
				atomic.StoreInt64(&lastDone, 5)
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CutoffDate != "2024-01-11" {
		t.Fatalf("unexpected cutoff %q", result.CutoffDate)
	}
	if result.ForecastWindow != "1D" || result.Stride != "1D" || result.Frequency != "day" {
		t.Fatalf("unexpected geometry %q %q %q", result.ForecastWindow, result.Stride, result.Frequency)
	}
	if len(result.Windows) != 5 || result.TotalPoints != 5 {
		t.Fatalf("expected 5 windows / 5 points, got %d / %d", len(result.Windows), result.TotalPoints)
	}
	if result.MAE != 1 {
		t.Fatalf("expected MAE 1, got %v", result.MAE)
	}

	first := result.Windows[0]
	if first.TargetStart != "2024-01-11" || first.HistoryEnd != "2024-01-10" || first.HistoryStart != "2024-01-01" {
		t.Fatalf("unexpected first window %+v", first)
	}
	if first.ActualValues[0] != 110 || first.ForecastValues[0] != 111 {
		t.Fatalf("unexpected first window values %+v", first)
	}
	if math.Abs(first.MAPE-100.0/110.0) > 1e-9 {
		t.Fatalf("unexpected first window MAPE %v", first.MAPE)
	}

	wantMAPE := 0.0
	for a := 110.0; a <= 114; a++ {
		wantMAPE += 100.0 / a
	}
	wantMAPE /= 5
	if math.Abs(result.MAPE-wantMAPE) > 1e-9 {
		t.Fatalf("unexpected pooled MAPE %v, want %v", result.MAPE, wantMAPE)
	}

	if atomic.LoadInt64(&progressCalls) != 5 || atomic.LoadInt64(&lastDone) != 5 {
		t.Fatalf("progress not reported for every window: calls=%d last=%d",
			atomic.LoadInt64(&progressCalls), atomic.LoadInt64(&lastDone))
	}
}

func TestRunWindowGeometry(t *testing.T) {
	timestamps, values := dailySeries(15)
	e := newTestEngine(t, &fakeForecaster{offset: 1})

	result, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-11",
		EndDate:    "2024-01-15",
		WindowRows: 2,
		StrideRows: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// partial window at the tail is dropped
	if len(result.Windows) != 2 {
		t.Fatalf("expected 2 full windows, got %d", len(result.Windows))
	}
	if result.Windows[0].TargetStart != "2024-01-11" || result.Windows[0].TargetEnd != "2024-01-12" {
		t.Fatalf("unexpected first window %+v", result.Windows[0])
	}
	if result.Windows[1].TargetStart != "2024-01-13" || result.Windows[1].TargetEnd != "2024-01-14" {
		t.Fatalf("unexpected second window %+v", result.Windows[1])
	}
	if result.TotalPoints != 4 {
		t.Fatalf("expected 4 pooled points, got %d", result.TotalPoints)
	}
}

func TestRunSkipsFailedWindows(t *testing.T) {
	timestamps, values := dailySeries(15)
	f := &fakeForecaster{offset: 1, failOn: map[string]bool{"2024-01-13": true}}
	e := newTestEngine(t, f)

	result, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-11",
		EndDate:    "2024-01-15",
	})
	if err != nil {
		t.Fatalf("failed window must not fail the run: %v", err)
	}
	if len(result.Windows) != 4 || result.TotalPoints != 4 {
		t.Fatalf("expected 4 surviving windows, got %d / %d", len(result.Windows), result.TotalPoints)
	}
	for _, w := range result.Windows {
		if w.TargetStart == "2024-01-13" {
			t.Fatalf("failed window should be dropped")
		}
	}
}

func TestRunUnsortedInput(t *testing.T) {
	timestamps, values := dailySeries(15)
	// reverse the series; the engine sorts before windowing
	for i, j := 0, len(timestamps)-1; i < j; i, j = i+1, j-1 {
		timestamps[i], timestamps[j] = timestamps[j], timestamps[i]
		values[i], values[j] = values[j], values[i]
	}
	e := newTestEngine(t, &fakeForecaster{offset: 1})

	result, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-11",
		EndDate:    "2024-01-15",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CutoffDate != "2024-01-11" || len(result.Windows) != 5 {
		t.Fatalf("unexpected result %q / %d windows", result.CutoffDate, len(result.Windows))
	}
	if result.Windows[0].ActualValues[0] != 110 {
		t.Fatalf("values not realigned after sort: %+v", result.Windows[0])
	}
}

func TestRunRegionErrors(t *testing.T) {
	timestamps, values := dailySeries(15)
	e := newTestEngine(t, &fakeForecaster{offset: 1})

	_, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2030-01-01",
		EndDate:    "2030-12-31",
	})
	if err == nil || !strings.Contains(err.Error(), "no data points in selected region") {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-05",
		EndDate:    "2024-01-15",
	})
	if err == nil || !strings.Contains(err.Error(), "not enough history data") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunForecasterNotReady(t *testing.T) {
	timestamps, values := dailySeries(15)
	f := &fakeForecaster{notReady: errors.New("SYNTHEFY_API_KEY environment variable not set")}
	e := newTestEngine(t, f)

	_, err := e.Run(context.Background(), &Params{
		Ticker:     "AAPL",
		Timestamps: timestamps,
		Values:     values,
		StartDate:  "2024-01-11",
		EndDate:    "2024-01-15",
	})
	if err == nil || !strings.Contains(err.Error(), "SYNTHEFY_API_KEY") {
		t.Fatalf("expected readiness error, got %v", err)
	}
	if f.calls != 0 {
		t.Fatalf("no windows should run when the forecaster is not ready")
	}
}
