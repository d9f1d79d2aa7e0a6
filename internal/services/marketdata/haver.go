package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	"ChartPulse/pkg/cache"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

// currencyPattern extracts a parenthesized unit at the end of a series
// description, e.g. "Gross Domestic Product (Mil.Euros)" -> "Mil.Euros".
var currencyPattern = regexp.MustCompile(`\(([^)]+)\)$`)

// yearPattern matches bare-year timestamps used by annual databases.
var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Haver is a REST client for Haver Analytics databases.
type Haver struct {
	baseURL     string
	apiKey      string
	client      *xhttp.Client
	cache       cache.Service
	dataTTL     time.Duration
	listingsTTL time.Duration
	metrics     repository.Metrics
	logger      *logger.Logger
}

func NewHaver(cfg *config.Config, log *logger.Logger, c cache.Service, m repository.Metrics) *Haver {
	timeout := cfg.Upstream.Haver.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dataTTL := cfg.Cache.TTL.Haver
	if dataTTL <= 0 {
		dataTTL = 24 * time.Hour
	}
	listingsTTL := cfg.Cache.TTL.Listings
	if listingsTTL <= 0 {
		listingsTTL = 24 * time.Hour
	}
	return &Haver{
		baseURL:     cfg.Upstream.Haver.BaseURL,
		apiKey:      cfg.Upstream.Haver.APIKey,
		client:      xhttp.NewClient(xhttp.WithTimeout(timeout)),
		cache:       c,
		dataTTL:     dataTTL,
		listingsTTL: listingsTTL,
		metrics:     m,
		logger:      log,
	}
}

func (h *Haver) authHeaders() (map[string]string, error) {
	if h.apiKey == "" {
		return nil, &AuthError{msg: "HAVER_API_KEY environment variable not set"}
	}
	return map[string]string{"Authorization": "Bearer " + h.apiKey}, nil
}

// Databases lists the available databases, sorted by code.
func (h *Haver) Databases(ctx context.Context) ([]models.HaverDatabase, error) {
	headers, err := h.authHeaders()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Databases map[string]string `json:"databases"`
	}
	err = h.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     h.baseURL + "/v1/databases",
		Headers: headers,
	}, &resp)
	if err != nil {
		h.metrics.RecordFetch("haver", "error")
		return nil, fmt.Errorf("list databases: %w", err)
	}

	databases := make([]models.HaverDatabase, 0, len(resp.Databases))
	for code, name := range resp.Databases {
		databases = append(databases, models.HaverDatabase{Code: code, Name: name})
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Code < databases[j].Code })
	h.metrics.RecordFetch("haver", "success")
	return databases, nil
}

// Series lists the series of one database, sorted by name. Listings are
// cached under "series:{db}".
func (h *Haver) Series(ctx context.Context, database string) ([]models.HaverSeriesInfo, error) {
	key := cache.GenerateKey("series", database)
	if h.cache != nil {
		var cached []models.HaverSeriesInfo
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			h.metrics.RecordCacheOutcome("haver", "hit")
			return cached, nil
		}
		h.metrics.RecordCacheOutcome("haver", "miss")
	}

	headers, err := h.authHeaders()
	if err != nil {
		return nil, err
	}

	// series values are either detail objects or bare descriptions
	var resp struct {
		Series map[string]json.RawMessage `json:"series"`
	}
	err = h.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/v1/database/%s/series", h.baseURL, database),
		Headers:     headers,
		QueryParams: map[string][]string{"full_info": {"false"}},
	}, &resp)
	if err != nil {
		h.metrics.RecordFetch("haver", "error")
		return nil, fmt.Errorf("list series %s: %w", database, err)
	}

	series := make([]models.HaverSeriesInfo, 0, len(resp.Series))
	for name, raw := range resp.Series {
		var info struct {
			Description string `json:"description"`
			StartDate   string `json:"start_date"`
			EndDate     string `json:"end_date"`
			Frequency   string `json:"frequency"`
		}
		if err := json.Unmarshal(raw, &info); err == nil {
			series = append(series, models.HaverSeriesInfo{
				Name:        name,
				Description: info.Description,
				StartDate:   info.StartDate,
				EndDate:     info.EndDate,
				Frequency:   info.Frequency,
			})
			continue
		}
		var description string
		if err := json.Unmarshal(raw, &description); err != nil {
			description = ""
		}
		series = append(series, models.HaverSeriesInfo{Name: name, Description: description})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Name < series[j].Name })

	h.metrics.RecordFetch("haver", "success")
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, series, h.listingsTTL); err != nil {
			h.logger.Warn("cache series listing", logger.String("key", key), logger.Error(err))
		}
	}
	return series, nil
}

// FetchSeries fetches one series. The Haver code is "{series}@{database}";
// results are cached under "data:{db}:{series}". The unit in parentheses
// at the end of the description becomes the currency.
func (h *Haver) FetchSeries(ctx context.Context, database, seriesName string) (*models.HaverSeriesData, error) {
	key := cache.GenerateKeyWithParams("data", database, seriesName)
	if h.cache != nil {
		var cached models.HaverSeriesData
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			h.metrics.RecordCacheOutcome("haver", "hit")
			return &cached, nil
		}
		h.metrics.RecordCacheOutcome("haver", "miss")
	}

	description, currency := h.seriesMeta(ctx, database, seriesName)

	headers, err := h.authHeaders()
	if err != nil {
		return nil, err
	}

	code := fmt.Sprintf("%s@%s", seriesName, database)
	var resp struct {
		Series []struct {
			Code   string    `json:"code"`
			Dates  []string  `json:"dates"`
			Values []float64 `json:"values"`
		} `json:"series"`
	}
	err = h.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         h.baseURL + "/v1/data",
		Headers:     headers,
		QueryParams: map[string][]string{"codes": {code}},
	}, &resp)
	if err != nil {
		h.metrics.RecordFetch("haver", "error")
		return nil, fmt.Errorf("fetch %s: %w", code, err)
	}
	if len(resp.Series) == 0 || len(resp.Series[0].Dates) == 0 {
		h.metrics.RecordFetch("haver", "empty")
		return nil, notFoundf("no data found for Haver code: %s", code)
	}

	row := resp.Series[0]
	n := len(row.Dates)
	if len(row.Values) < n {
		n = len(row.Values)
	}
	timestamps := make([]string, 0, n)
	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		timestamps = append(timestamps, normalizeHaverDate(row.Dates[i]))
		values = append(values, row.Values[i])
	}

	result := &models.HaverSeriesData{
		Database:    database,
		Series:      seriesName,
		Description: description,
		Currency:    currency,
		Timestamps:  timestamps,
		Values:      values,
	}
	h.metrics.RecordFetch("haver", "success")
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, result, h.dataTTL); err != nil {
			h.logger.Warn("cache series data", logger.String("key", key), logger.Error(err))
		}
	}
	return result, nil
}

// seriesMeta looks up description and currency for a series from its
// database listing. Lookup failures leave both empty.
func (h *Haver) seriesMeta(ctx context.Context, database, seriesName string) (description, currency string) {
	listing, err := h.Series(ctx, database)
	if err != nil {
		h.logger.Warn("series metadata lookup",
			logger.String("database", database), logger.Error(err))
		return "", ""
	}
	for _, s := range listing {
		if s.Name == seriesName {
			description = s.Description
			if m := currencyPattern.FindStringSubmatch(description); m != nil {
				currency = m[1]
			}
			return description, currency
		}
	}
	return "", ""
}

// normalizeHaverDate converts upstream dates to the series time format.
// Bare years become Jan 1; anything unparseable passes through.
func normalizeHaverDate(s string) string {
	if yearPattern.MatchString(s) {
		return s + "-01-01T00:00:00"
	}
	if t, ok := util.ParseTime(s); ok {
		return t.Format(seriesTimeFormat)
	}
	return s
}
