package models

// SeriesData is a normalized time series of closing values for an equity.
type SeriesData struct {
	Ticker     string    `json:"ticker"`
	Timestamps []string  `json:"timestamps"`
	Values     []float64 `json:"values"`
	DataType   string    `json:"data_type"`
}

// CryptoSeriesData carries crypto closes plus the quote currency.
type CryptoSeriesData struct {
	Ticker     string    `json:"ticker"`
	Timestamps []string  `json:"timestamps"`
	Values     []float64 `json:"values"`
	DataType   string    `json:"data_type"`
	Currency   string    `json:"currency"`
}

// ForexSeriesData carries exchange rates for a currency pair.
type ForexSeriesData struct {
	Ticker        string    `json:"ticker"`
	BaseCurrency  string    `json:"base_currency"`
	QuoteCurrency string    `json:"quote_currency"`
	Timestamps    []string  `json:"timestamps"`
	Values        []float64 `json:"values"`
	DataType      string    `json:"data_type"`
}

// MacroSeriesData carries an annual macro indicator series for a country.
type MacroSeriesData struct {
	Indicator   string    `json:"indicator"`
	CountryISO3 string    `json:"country_iso3"`
	CountryName string    `json:"country_name"`
	Timestamps  []string  `json:"timestamps"`
	Values      []float64 `json:"values"`
	Units       string    `json:"units"`
}

// HaverSeriesData carries a series fetched from Haver Analytics.
type HaverSeriesData struct {
	Database    string    `json:"database"`
	Series      string    `json:"series"`
	Description string    `json:"description,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Timestamps  []string  `json:"timestamps"`
	Values      []float64 `json:"values"`
}

// CryptoListing is one entry of the popular-crypto catalog.
type CryptoListing struct {
	Symbol string `json:"symbol"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// ForexListing is one entry of the popular-pairs catalog.
type ForexListing struct {
	Pair   string `json:"pair"`
	Ticker string `json:"ticker"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// MacroCountry describes a tracked country for macro series.
type MacroCountry struct {
	Name string `json:"name"`
	ISO3 string `json:"iso3"`
	ISO2 string `json:"iso2"`
}

// HaverDatabase identifies one Haver database.
type HaverDatabase struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HaverSeriesInfo is catalog metadata for one series in a database.
type HaverSeriesInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
}

// ChartPoint is one renderable point: the raw date key plus a
// human-readable label.
type ChartPoint struct {
	Date          string  `json:"date"`
	FormattedDate string  `json:"formatted_date"`
	Value         float64 `json:"value"`
}

// RangeStats summarizes the movement between two selected points of a
// series. ChangePercent is nil when the range starts at zero, where a
// percent change is undefined.
type RangeStats struct {
	StartIndex    int      `json:"start_index"`
	EndIndex      int      `json:"end_index"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	StartValue    float64  `json:"start_value"`
	EndValue      float64  `json:"end_value"`
	Change        float64  `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	Description   string   `json:"description"`
}
