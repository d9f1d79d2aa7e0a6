package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	"ChartPulse/pkg/cache"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
	"ChartPulse/pkg/util"
)

const (
	defaultYahooBaseURL = "https://query1.finance.yahoo.com"
	seriesTimeFormat    = "2006-01-02T15:04:05"
	defaultMarketTTL    = 15 * time.Minute
)

// Yahoo fetches daily close series from the Yahoo chart API. Crypto and
// forex services reuse it with their normalized symbols.
type Yahoo struct {
	baseURL string
	client  *xhttp.Client
	cache   cache.Service
	ttl     time.Duration
	metrics repository.Metrics
	logger  *logger.Logger
}

// NewYahoo builds the chart API client from config.
func NewYahoo(cfg *config.Config, log *logger.Logger, c cache.Service, m repository.Metrics) *Yahoo {
	baseURL := cfg.Upstream.Yahoo.BaseURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	timeout := cfg.Upstream.Yahoo.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	userAgent := cfg.Upstream.Yahoo.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; chartpulse/1.0)"
	}
	ttl := cfg.Cache.TTL.Market
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &Yahoo{
		baseURL: baseURL,
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithDefaultHeaders(map[string]string{"User-Agent": userAgent}),
		),
		cache:   c,
		ttl:     ttl,
		metrics: m,
		logger:  log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries returns the close series for a ticker. Dates are YYYY-MM-DD;
// when omitted the range defaults to the last five years.
func (y *Yahoo) FetchSeries(ctx context.Context, ticker, startDate, endDate string) (*models.SeriesData, error) {
	ticker = util.NormalizeSymbol(ticker)
	timestamps, values, err := y.fetchChart(ctx, ticker, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, notFoundf("no data found for ticker: %s", ticker)
	}
	return &models.SeriesData{
		Ticker:     ticker,
		Timestamps: timestamps,
		Values:     values,
		DataType:   "close",
	}, nil
}

// fetchChart resolves the date range, consults the cache, and parses the
// chart payload into aligned timestamp/value slices. Null closes are
// skipped.
func (y *Yahoo) fetchChart(ctx context.Context, symbol, startDate, endDate string) ([]string, []float64, error) {
	now := time.Now().UTC()
	start := util.ParseTimeDefault(startDate, now.AddDate(-5, 0, 0))
	end := util.ParseTimeDefault(endDate, now)

	key := cache.GenerateKeyWithParams("market", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if y.cache != nil {
		var cached struct {
			Timestamps []string  `json:"timestamps"`
			Values     []float64 `json:"values"`
		}
		if err := y.cache.Get(ctx, key, &cached); err == nil {
			y.metrics.RecordCacheOutcome("market", "hit")
			return cached.Timestamps, cached.Values, nil
		}
		y.metrics.RecordCacheOutcome("market", "miss")
	}

	var resp chartResponse
	err := y.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, symbol),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(end.Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		y.metrics.RecordFetch("yahoo", "error")
		return nil, nil, fmt.Errorf("chart request for %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil || len(resp.Chart.Result) == 0 {
		y.metrics.RecordFetch("yahoo", "empty")
		return nil, nil, nil
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		y.metrics.RecordFetch("yahoo", "empty")
		return nil, nil, nil
	}

	closes := result.Indicators.Quote[0].Close
	timestamps := make([]string, 0, len(result.Timestamp))
	values := make([]float64, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		timestamps = append(timestamps, time.Unix(ts, 0).UTC().Format(seriesTimeFormat))
		values = append(values, *closes[i])
	}
	y.metrics.RecordFetch("yahoo", "success")
	y.logger.Debug("chart fetched",
		logger.String("symbol", symbol),
		logger.Int("points", len(values)))

	if y.cache != nil && len(timestamps) > 0 {
		payload := map[string]interface{}{"timestamps": timestamps, "values": values}
		if err := y.cache.Set(ctx, key, payload, y.ttl); err != nil {
			y.logger.Warn("cache series", logger.String("key", key), logger.Error(err))
		}
	}
	return timestamps, values, nil
}
