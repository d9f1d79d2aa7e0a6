package models

// BacktestWindow is one forecast window: everything before target_start was
// history, the target region holds the values being predicted.
type BacktestWindow struct {
	HistoryStart   string    `json:"history_start"`
	HistoryEnd     string    `json:"history_end"`
	TargetStart    string    `json:"target_start"`
	TargetEnd      string    `json:"target_end"`
	ActualValues   []float64 `json:"actual_values"`
	ForecastValues []float64 `json:"forecast_values"`
	Timestamps     []string  `json:"timestamps"`
	MAPE           float64   `json:"mape"`
	MAE            float64   `json:"mae"`
}

// BacktestResult is a completed backtest with run-level metrics. The
// run-level MAPE/MAE are computed over all window points pooled together,
// which is not the mean of per-window metrics.
type BacktestResult struct {
	Ticker         string           `json:"ticker"`
	CutoffDate     string           `json:"cutoff_date"`
	ForecastWindow string           `json:"forecast_window"`
	Stride         string           `json:"stride"`
	Frequency      string           `json:"frequency"`
	Windows        []BacktestWindow `json:"windows"`
	MAPE           float64          `json:"mape"`
	MAE            float64          `json:"mae"`
	TotalPoints    int              `json:"total_points"`
	Overlay        []OverlayPoint   `json:"overlay,omitempty"`
}

// OverlayPoint is one observed point merged with the forecast some window
// produced for its calendar date. Forecast is nil on dates no window covers.
type OverlayPoint struct {
	Date     string   `json:"date"`
	Value    float64  `json:"value"`
	Forecast *float64 `json:"forecast"`
}

// AssetSummary is the latest successful backtest for one asset.
type AssetSummary struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	AssetClass   string   `json:"asset_class"`
	MAPE         *float64 `json:"mape"`
	MAE          *float64 `json:"mae"`
	TotalPoints  int      `json:"total_points"`
	RunWeek      string   `json:"run_week,omitempty"`
	RunKey       string   `json:"run_key"`
	RunTimestamp string   `json:"run_timestamp,omitempty"`
}

// RunSummary describes one stored backtest run.
type RunSummary struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	AssetClass     string   `json:"asset_class"`
	RunKey         string   `json:"run_key"`
	MAPE           *float64 `json:"mape"`
	MAE            *float64 `json:"mae"`
	TotalPoints    int      `json:"total_points"`
	ForecastWindow string   `json:"forecast_window"`
	Stride         string   `json:"stride"`
	Frequency      string   `json:"frequency"`
	RunWeek        string   `json:"run_week,omitempty"`
	RunTimestamp   string   `json:"run_timestamp,omitempty"`
}

// StoredWindow is a persisted forecast window. Stored runs use
// single-point targets, so actual and forecast are scalars.
type StoredWindow struct {
	HistoryStart  string   `json:"history_start"`
	HistoryEnd    string   `json:"history_end"`
	TargetStart   string   `json:"target_start"`
	TargetEnd     string   `json:"target_end"`
	ActualValue   float64  `json:"actual_value"`
	ForecastValue float64  `json:"forecast_value"`
	Timestamps    []string `json:"timestamps"`
}

// RunDetail is the latest stored run for an asset plus its windows.
type RunDetail struct {
	Summary RunSummary     `json:"summary"`
	Windows []StoredWindow `json:"windows"`
}
