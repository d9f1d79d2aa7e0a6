package timeseries

import (
	"testing"

	"ChartPulse/internal/domain/models"
)

func TestOverlayMergesForecastsByDate(t *testing.T) {
	timestamps := []string{
		"2024-01-01T00:00:00",
		"2024-01-02T00:00:00",
		"2024-01-03T00:00:00",
	}
	values := []float64{10, 11, 12}
	windows := []models.BacktestWindow{
		{
			TargetStart:    "2024-01-02T00:00:00",
			TargetEnd:      "2024-01-02T00:00:00",
			ForecastValues: []float64{11.5},
			Timestamps:     []string{"2024-01-02T00:00:00"},
		},
	}

	points := Overlay(timestamps, values, windows)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Forecast != nil {
		t.Fatalf("expected nil forecast on uncovered date, got %v", *points[0].Forecast)
	}
	if points[1].Forecast == nil || *points[1].Forecast != 11.5 {
		t.Fatalf("expected forecast 11.5, got %v", points[1].Forecast)
	}
	if points[2].Forecast != nil {
		t.Fatalf("expected nil forecast on uncovered date")
	}
}

func TestOverlayLatestWindowWins(t *testing.T) {
	timestamps := []string{"2024-01-05T00:00:00"}
	values := []float64{20}
	// both windows forecast Jan 5; the later target interval must win
	windows := []models.BacktestWindow{
		{
			TargetStart:    "2024-01-05T00:00:00",
			ForecastValues: []float64{21},
			Timestamps:     []string{"2024-01-05T00:00:00"},
		},
		{
			TargetStart:    "2024-01-04T00:00:00",
			ForecastValues: []float64{19},
			Timestamps:     []string{"2024-01-05T00:00:00"},
		},
	}

	points := Overlay(timestamps, values, windows)
	if points[0].Forecast == nil || *points[0].Forecast != 21 {
		t.Fatalf("expected the later window's 21, got %v", points[0].Forecast)
	}
}

func TestOverlayBucketsMixedTimestampFormats(t *testing.T) {
	// series uses date-only keys, windows carry full datetimes
	points := Overlay(
		[]string{"2024-01-02"},
		[]float64{5},
		[]models.BacktestWindow{{
			TargetStart:    "2024-01-02T00:00:00",
			ForecastValues: []float64{5.5},
			Timestamps:     []string{"2024-01-02T15:30:00"},
		}},
	)
	if points[0].Forecast == nil || *points[0].Forecast != 5.5 {
		t.Fatalf("expected date-bucketed match, got %v", points[0].Forecast)
	}
}
