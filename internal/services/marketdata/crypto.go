package marketdata

import (
	"context"
	"strings"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/util"
)

// cryptoListings is the curated top-15 universe, in display order.
var cryptoListings = []models.CryptoListing{
	{Symbol: "BTC", Ticker: "BTC-USD", Name: "BTC"},
	{Symbol: "ETH", Ticker: "ETH-USD", Name: "ETH"},
	{Symbol: "USDT", Ticker: "USDT-USD", Name: "USDT"},
	{Symbol: "BNB", Ticker: "BNB-USD", Name: "BNB"},
	{Symbol: "SOL", Ticker: "SOL-USD", Name: "SOL"},
	{Symbol: "XRP", Ticker: "XRP-USD", Name: "XRP"},
	{Symbol: "USDC", Ticker: "USDC-USD", Name: "USDC"},
	{Symbol: "ADA", Ticker: "ADA-USD", Name: "ADA"},
	{Symbol: "DOGE", Ticker: "DOGE-USD", Name: "DOGE"},
	{Symbol: "TRX", Ticker: "TRX-USD", Name: "TRX"},
	{Symbol: "AVAX", Ticker: "AVAX-USD", Name: "AVAX"},
	{Symbol: "DOT", Ticker: "DOT-USD", Name: "DOT"},
	{Symbol: "MATIC", Ticker: "MATIC-USD", Name: "MATIC"},
	{Symbol: "LINK", Ticker: "LINK-USD", Name: "LINK"},
	{Symbol: "UNI", Ticker: "UNI-USD", Name: "UNI"},
}

var cryptoPairs = func() map[string]string {
	m := make(map[string]string, len(cryptoListings))
	for _, l := range cryptoListings {
		m[l.Symbol] = l.Ticker
	}
	return m
}()

// Crypto serves cryptocurrency series through the chart client.
type Crypto struct {
	yahoo *Yahoo
}

func NewCrypto(yahoo *Yahoo) *Crypto {
	return &Crypto{yahoo: yahoo}
}

// NormalizeTicker maps a crypto symbol to its quote pair: BTC and btc
// become BTC-USD, an explicit pair like ETH-EUR passes through.
func NormalizeTicker(ticker string) string {
	ticker = util.NormalizeSymbol(ticker)
	if strings.Contains(ticker, "-") {
		return ticker
	}
	if pair, ok := cryptoPairs[ticker]; ok {
		return pair
	}
	return ticker + "-USD"
}

// Listings returns the curated top-15 crypto catalog.
func (c *Crypto) Listings() []models.CryptoListing {
	out := make([]models.CryptoListing, len(cryptoListings))
	copy(out, cryptoListings)
	return out
}

// FetchSeries fetches closes for a crypto symbol. The quote currency comes
// from the normalized pair suffix.
func (c *Crypto) FetchSeries(ctx context.Context, ticker, startDate, endDate string) (*models.CryptoSeriesData, error) {
	normalized := NormalizeTicker(ticker)
	timestamps, values, err := c.yahoo.fetchChart(ctx, normalized, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, notFoundf("no data found for crypto ticker: %s (normalized: %s)", ticker, normalized)
	}

	currency := "USD"
	if i := strings.Index(normalized, "-"); i >= 0 {
		currency = normalized[i+1:]
	}
	return &models.CryptoSeriesData{
		Ticker:     normalized,
		Timestamps: timestamps,
		Values:     values,
		DataType:   "close",
		Currency:   currency,
	}, nil
}
