package marketdata

import (
	"context"
	"strings"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/util"
)

// forexListings is the curated pair universe, in display order.
var forexListings = []models.ForexListing{
	{Pair: "EURUSD", Ticker: "EURUSD=X", Base: "EUR", Quote: "USD"},
	{Pair: "GBPUSD", Ticker: "GBPUSD=X", Base: "GBP", Quote: "USD"},
	{Pair: "USDJPY", Ticker: "USDJPY=X", Base: "USD", Quote: "JPY"},
	{Pair: "AUDUSD", Ticker: "AUDUSD=X", Base: "AUD", Quote: "USD"},
	{Pair: "USDCAD", Ticker: "USDCAD=X", Base: "USD", Quote: "CAD"},
	{Pair: "USDCHF", Ticker: "USDCHF=X", Base: "USD", Quote: "CHF"},
	{Pair: "NZDUSD", Ticker: "NZDUSD=X", Base: "NZD", Quote: "USD"},
	{Pair: "EURGBP", Ticker: "EURGBP=X", Base: "EUR", Quote: "GBP"},
	{Pair: "EURJPY", Ticker: "EURJPY=X", Base: "EUR", Quote: "JPY"},
	{Pair: "GBPJPY", Ticker: "GBPJPY=X", Base: "GBP", Quote: "JPY"},
	{Pair: "AUDJPY", Ticker: "AUDJPY=X", Base: "AUD", Quote: "JPY"},
	{Pair: "EURAUD", Ticker: "EURAUD=X", Base: "EUR", Quote: "AUD"},
	{Pair: "EURCHF", Ticker: "EURCHF=X", Base: "EUR", Quote: "CHF"},
	{Pair: "GBPAUD", Ticker: "GBPAUD=X", Base: "GBP", Quote: "AUD"},
	{Pair: "GBPCAD", Ticker: "GBPCAD=X", Base: "GBP", Quote: "CAD"},
}

// Forex serves currency pair series through the chart client.
type Forex struct {
	yahoo *Yahoo
}

func NewForex(yahoo *Yahoo) *Forex {
	return &Forex{yahoo: yahoo}
}

// NormalizePair converts a pair in any accepted form (EURUSD, EUR/USD,
// EURUSD=X) to the =X chart convention plus its base and quote currencies.
func NormalizePair(pair string) (ticker, base, quote string, err error) {
	p := strings.ReplaceAll(util.NormalizeSymbol(pair), "/", "")
	if strings.Contains(p, "=X") {
		if len(p) < 6 {
			return "", "", "", invalidTickerf("invalid forex pair format: %s. Expected format: EURUSD, EUR/USD, or EURUSD=X", p)
		}
		return p, p[:3], p[3:6], nil
	}
	if len(p) == 6 {
		return p + "=X", p[:3], p[3:6], nil
	}
	return "", "", "", invalidTickerf("invalid forex pair format: %s. Expected format: EURUSD, EUR/USD, or EURUSD=X", p)
}

// Listings returns the curated pair catalog.
func (f *Forex) Listings() []models.ForexListing {
	out := make([]models.ForexListing, len(forexListings))
	copy(out, forexListings)
	return out
}

// FetchSeries fetches exchange rates for a currency pair.
func (f *Forex) FetchSeries(ctx context.Context, pair, startDate, endDate string) (*models.ForexSeriesData, error) {
	ticker, base, quote, err := NormalizePair(pair)
	if err != nil {
		return nil, err
	}
	timestamps, values, err := f.yahoo.fetchChart(ctx, ticker, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, notFoundf("no data found for forex pair: %s (normalized: %s)", pair, ticker)
	}
	return &models.ForexSeriesData{
		Ticker:        ticker,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Timestamps:    timestamps,
		Values:        values,
		DataType:      "close",
	}, nil
}
