package models

import "time"

// Asset classes tracked by the weekly refresh.
const (
	ClassEquities = "equities"
	ClassCrypto   = "crypto"
	ClassForex    = "forex"
	ClassMacro    = "macro"
)

// ValidAssetClass reports whether s names a known asset class.
func ValidAssetClass(s string) bool {
	switch s {
	case ClassEquities, ClassCrypto, ClassForex, ClassMacro:
		return true
	default:
		return false
	}
}

// Asset is one tracked ticker or series.
type Asset struct {
	AssetClass string `json:"asset_class"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Source     string `json:"source,omitempty"`
}

// PricePoint is one historical value of an asset, as ingested from a
// source.
type PricePoint struct {
	AssetClass string    `json:"asset_class"`
	Symbol     string    `json:"symbol"`
	AsOf       time.Time `json:"as_of"`
	Value      float64   `json:"value"`
	Currency   string    `json:"currency,omitempty"`
	Source     string    `json:"source"`
}

// PriceBatch groups the points of one asset for transport between the
// downloader and the storage backend.
type PriceBatch struct {
	AssetClass string       `json:"asset_class"`
	Symbol     string       `json:"symbol"`
	Points     []PricePoint `json:"points"`
}

// BacktestJob is a queued request to backtest one asset. StartDate bounds
// the history loaded from storage; BacktestStartDate is where evaluation
// begins within it.
type BacktestJob struct {
	AssetClass        string `json:"asset_class"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name,omitempty"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	BacktestStartDate string `json:"backtest_start_date"`
	WindowRows        int    `json:"forecast_window"`
	StrideRows        int    `json:"stride"`
	RunKey            string `json:"run_key"`
}

// RunProgress is a progress frame for subscribers watching backtests.
type RunProgress struct {
	AssetClass string  `json:"asset_class,omitempty"`
	Symbol     string  `json:"symbol"`
	Status     string  `json:"status"`
	RunKey     string  `json:"run_key,omitempty"`
	Done       int     `json:"done,omitempty"`
	Total      int     `json:"total,omitempty"`
	MAPE       float64 `json:"mape,omitempty"`
	Error      string  `json:"error,omitempty"`
}
