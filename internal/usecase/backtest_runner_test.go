package usecase

import (
	"context"
	"testing"

	"ChartPulse/internal/domain/models"
)

func TestBacktestRunnerAttachesOverlay(t *testing.T) {
	ts, vals := storedSeries(40)
	notifier := &fakeNotifier{}
	r := NewBacktestRunner(newTestEngine(t, &echoForecaster{}), notifier)

	result, err := r.Run(context.Background(), &models.BacktestRequest{
		Ticker:     "AAPL",
		Timestamps: ts,
		Values:     vals,
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-09",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Windows) != 9 {
		t.Fatalf("expected 9 windows, got %d", len(result.Windows))
	}
	if len(result.Overlay) != 40 {
		t.Fatalf("overlay must cover the whole submitted series, got %d", len(result.Overlay))
	}
	if result.Overlay[0].Forecast != nil {
		t.Fatalf("no forecast expected before the evaluation region")
	}
	if result.Overlay[31].Forecast == nil {
		t.Fatalf("expected forecast on the first evaluated date")
	}

	statuses := notifier.statuses()
	if statuses[len(statuses)-1] != StatusSuccess {
		t.Fatalf("expected final success frame, got %v", statuses)
	}
}

func TestBacktestRunnerBroadcastsFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewBacktestRunner(newTestEngine(t, &echoForecaster{}), notifier)

	_, err := r.Run(context.Background(), &models.BacktestRequest{
		Ticker:     "X",
		Timestamps: []string{"2024-01-01"},
		Values:     []float64{1},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-02",
	})
	if err == nil {
		t.Fatalf("expected error for series with no history")
	}
	statuses := notifier.statuses()
	if len(statuses) != 1 || statuses[0] != StatusFailed {
		t.Fatalf("expected one failed frame, got %v", statuses)
	}
}
