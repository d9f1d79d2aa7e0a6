package timeseries

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PointError is the absolute percentage error for one forecast point. It is
// exactly 0 when actual is 0, a known approximation that underestimates
// error at zero crossings.
func PointError(actual, forecast float64) float64 {
	if actual == 0 {
		return 0
	}
	return math.Abs((actual-forecast)/actual) * 100
}

// WindowMAPE is the mean absolute percentage error within one window.
// Zero-actual points contribute 0 rather than being skipped.
func WindowMAPE(actual, forecast []float64) float64 {
	n := alignedLen(actual, forecast)
	if n == 0 {
		return 0
	}
	errs := make([]float64, n)
	for i := 0; i < n; i++ {
		errs[i] = PointError(actual[i], forecast[i])
	}
	return stat.Mean(errs, nil)
}

// MAPE is the run-level mean absolute percentage error over pooled points.
// Points with a zero actual are skipped here, unlike WindowMAPE.
func MAPE(actual, forecast []float64) float64 {
	n := alignedLen(actual, forecast)
	errs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if actual[i] == 0 {
			continue
		}
		errs = append(errs, math.Abs((actual[i]-forecast[i])/actual[i])*100)
	}
	if len(errs) == 0 {
		return 0
	}
	return stat.Mean(errs, nil)
}

// MAE is the mean absolute error over pooled points.
func MAE(actual, forecast []float64) float64 {
	n := alignedLen(actual, forecast)
	if n == 0 {
		return 0
	}
	errs := make([]float64, n)
	for i := 0; i < n; i++ {
		errs[i] = math.Abs(actual[i] - forecast[i])
	}
	return stat.Mean(errs, nil)
}

// alignedLen treats mismatched slices as empty, so every metric degrades to
// 0 instead of indexing past the shorter side.
func alignedLen(actual, forecast []float64) int {
	if len(actual) != len(forecast) {
		return 0
	}
	return len(actual)
}
