package timeseries

import (
	"math"
	"testing"
)

func TestPointErrorZeroActual(t *testing.T) {
	if got := PointError(0, 123.45); got != 0 {
		t.Fatalf("expected 0 for zero actual, got %v", got)
	}
	if got := PointError(100, 90); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestWindowMAPEIncludesZeroActuals(t *testing.T) {
	// errors are 10, 0, 10; the zero actual counts as a 0-error point
	got := WindowMAPE([]float64{100, 0, 50}, []float64{90, 10, 55})
	want := 20.0 / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMAPESkipsZeroActuals(t *testing.T) {
	got := MAPE([]float64{100, 0, 50}, []float64{90, 10, 55})
	if math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestMAPEAllZeroActuals(t *testing.T) {
	if got := MAPE([]float64{0, 0}, []float64{1, 2}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestMAPEMismatchedLengths(t *testing.T) {
	if got := MAPE([]float64{1, 2, 3}, []float64{1, 2}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := MAE([]float64{1}, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestMAE(t *testing.T) {
	got := MAE([]float64{100, 0}, []float64{90, 10})
	if math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %v", got)
	}
}
