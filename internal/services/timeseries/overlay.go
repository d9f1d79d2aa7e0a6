package timeseries

import (
	"sort"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/util"
)

// Overlay merges backtest forecasts into the observed series by calendar
// date. Windows are applied in ascending target_start order, so when several
// windows forecast the same date the one with the latest target interval
// wins. Dates no window covers carry a nil forecast.
func Overlay(timestamps []string, values []float64, windows []models.BacktestWindow) []models.OverlayPoint {
	ordered := make([]models.BacktestWindow, len(windows))
	copy(ordered, windows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TargetStart < ordered[j].TargetStart
	})

	forecasts := make(map[string]float64)
	for _, w := range ordered {
		n := len(w.Timestamps)
		if len(w.ForecastValues) < n {
			n = len(w.ForecastValues)
		}
		for i := 0; i < n; i++ {
			forecasts[util.DateKey(w.Timestamps[i])] = w.ForecastValues[i]
		}
	}

	n := len(timestamps)
	if len(values) < n {
		n = len(values)
	}
	points := make([]models.OverlayPoint, 0, n)
	for i := 0; i < n; i++ {
		p := models.OverlayPoint{Date: timestamps[i], Value: values[i]}
		if f, ok := forecasts[util.DateKey(timestamps[i])]; ok {
			p.Forecast = &f
		}
		points = append(points, p)
	}
	return points
}
