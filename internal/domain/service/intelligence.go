package service

import (
	"context"

	"ChartPulse/internal/domain/models"
)

// Forecaster produces a forecast for one prepared window. Ready reports
// whether the service is configured; backtests fail fast when it is not.
type Forecaster interface {
	Ready() error
	Forecast(ctx context.Context, sample *models.ForecastSample) ([]float64, error)
}

// MovementExplainer searches the web for why a series moved over a period.
type MovementExplainer interface {
	ExplainMovement(ctx context.Context, ticker, query, startDate, endDate, changeDescription string) (*models.SearchResult, error)
}

// CriticalEventsFinder locates the most important dated events for a
// ticker within a period.
type CriticalEventsFinder interface {
	FindCriticalEvents(ctx context.Context, ticker, startDate, endDate string, numEvents int) (*models.CriticalEventsResult, error)
}

// TextFormatter rewrites prose into readable markdown. Implementations
// return the input untouched when formatting is unavailable or fails.
type TextFormatter interface {
	Format(ctx context.Context, text string) string
}
