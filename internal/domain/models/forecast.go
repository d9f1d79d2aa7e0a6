package models

// SeriesPayload is the neutral form a source adapter hands to the
// refresh pipeline, whatever the upstream was.
type SeriesPayload struct {
	Symbol     string
	Name       string
	Currency   string
	Source     string
	Timestamps []string
	Values     []float64
}

// ForecastSample is one window sent to the forecasting service: full
// history before the target region, and the target being predicted.
type ForecastSample struct {
	HistoryTimestamps []string
	HistoryValues     []float64
	TargetTimestamps  []string
	TargetValues      []float64
}

// RunRecord is a finished backtest run in persistable form.
type RunRecord struct {
	AssetClass     string
	Symbol         string
	RunKey         string
	StartDate      string
	EndDate        string
	ForecastWindow string
	Stride         string
	Frequency      string
	Status         string
	MAPE           float64
	MAE            float64
	TotalPoints    int
	RunWeek        string
	CutoffDate     string
	Error          string
	Windows        []StoredWindow
}
