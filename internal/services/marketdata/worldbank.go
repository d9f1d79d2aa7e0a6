package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

const (
	defaultWorldBankBaseURL = "https://api.worldbank.org"
	defaultIndicator        = "NY.GDP.MKTP.CD"
	defaultStartYear        = 2000
)

// WorldBank fetches annual macro indicator series, GDP by default.
type WorldBank struct {
	baseURL   string
	indicator string
	startYear int
	endYear   int
	countries []models.MacroCountry
	client    *xhttp.Client
	metrics   repository.Metrics
	logger    *logger.Logger
}

func NewWorldBank(cfg *config.Config, log *logger.Logger, m repository.Metrics) *WorldBank {
	wb := cfg.Upstream.WorldBank
	baseURL := wb.BaseURL
	if baseURL == "" {
		baseURL = defaultWorldBankBaseURL
	}
	indicator := wb.Indicator
	if indicator == "" {
		indicator = defaultIndicator
	}
	startYear := wb.StartYear
	if startYear == 0 {
		startYear = defaultStartYear
	}
	endYear := wb.EndYear
	if endYear == 0 {
		endYear = time.Now().UTC().Year()
	}
	timeout := wb.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	countries := make([]models.MacroCountry, 0, len(wb.Countries))
	for _, c := range wb.Countries {
		countries = append(countries, models.MacroCountry{Name: c.Name, ISO3: c.ISO3, ISO2: c.ISO2})
	}
	return &WorldBank{
		baseURL:   baseURL,
		indicator: indicator,
		startYear: startYear,
		endYear:   endYear,
		countries: countries,
		client:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		metrics:   m,
		logger:    log,
	}
}

// Countries returns the configured country catalog.
func (w *WorldBank) Countries() []models.MacroCountry {
	out := make([]models.MacroCountry, len(w.countries))
	copy(out, w.countries)
	return out
}

// countryMeta resolves a country code against the configured catalog,
// accepting ISO3 or ISO2. Unknown codes pass through as-is.
func (w *WorldBank) countryMeta(code string) models.MacroCountry {
	normalized := util.NormalizeSymbol(code)
	for _, c := range w.countries {
		if normalized == util.NormalizeSymbol(c.ISO3) || normalized == util.NormalizeSymbol(c.ISO2) {
			return c
		}
	}
	iso2 := normalized
	if len(iso2) > 2 {
		iso2 = iso2[:2]
	}
	return models.MacroCountry{Name: normalized, ISO3: normalized, ISO2: iso2}
}

type wbObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// FetchGDP returns the indicator series for one country. Years bound the
// range inclusively; zero values fall back to the configured defaults.
func (w *WorldBank) FetchGDP(ctx context.Context, countryCode, indicator string, startYear, endYear int) (*models.MacroSeriesData, error) {
	if indicator == "" {
		indicator = w.indicator
	}
	if startYear == 0 {
		startYear = w.startYear
	}
	if endYear == 0 {
		endYear = w.endYear
	}
	meta := w.countryMeta(countryCode)

	var payload []json.RawMessage
	err := w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v2/country/%s/indicator/%s", w.baseURL, meta.ISO3, indicator),
		QueryParams: map[string][]string{
			"format":   {"json"},
			"per_page": {"1000"},
			"date":     {fmt.Sprintf("%d:%d", startYear, endYear)},
		},
	}, &payload)
	if err != nil {
		w.metrics.RecordFetch("worldbank", "error")
		return nil, fmt.Errorf("worldbank request for %s: %w", meta.ISO3, err)
	}

	var observations []wbObservation
	if len(payload) > 1 {
		if err := json.Unmarshal(payload[1], &observations); err != nil {
			w.metrics.RecordFetch("worldbank", "error")
			return nil, fmt.Errorf("worldbank decode for %s: %w", meta.ISO3, err)
		}
	}
	if len(observations) == 0 {
		w.metrics.RecordFetch("worldbank", "empty")
		return nil, notFoundf("no GDP data found for %s (%s) using indicator %s between %d and %d",
			meta.Name, meta.ISO3, indicator, startYear, endYear)
	}

	// API returns newest first
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Date < observations[j].Date
	})

	timestamps := make([]string, 0, len(observations))
	values := make([]float64, 0, len(observations))
	for _, obs := range observations {
		timestamps = append(timestamps, obs.Date+"-01-01T00:00:00")
		if obs.Value != nil {
			values = append(values, *obs.Value)
		} else {
			values = append(values, 0)
		}
	}

	w.metrics.RecordFetch("worldbank", "success")
	w.logger.Debug("gdp fetched",
		logger.String("country", meta.ISO3),
		logger.Int("points", len(values)))

	return &models.MacroSeriesData{
		Indicator:   indicator,
		CountryISO3: meta.ISO3,
		CountryName: meta.Name,
		Timestamps:  timestamps,
		Values:      values,
		Units:       "USD",
	}, nil
}
