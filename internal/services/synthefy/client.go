package synthefy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ChartPulse/internal/domain/models"
	"ChartPulse/internal/domain/repository"
	domsvc "ChartPulse/internal/domain/service"
	"ChartPulse/internal/services/ratelimit"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
)

const (
	defaultBaseURL      = "https://api.synthefy.com"
	defaultModel        = "sfm-moe-v1"
	defaultMaxRetries   = 3
	defaultRequestDelay = time.Second

	paceKey = "synthefy"
)

// retryableFragments mark transient upstream failures worth retrying.
var retryableFragments = []string{"502", "503", "504", "timeout", "bad gateway"}

// flexValue decodes a number that the API may wrap in a one-element array.
type flexValue float64

func (v *flexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) == 0 {
			return fmt.Errorf("empty value array")
		}
		*v = flexValue(arr[0])
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = flexValue(f)
	return nil
}

type samplePayload struct {
	HistoryTimestamps []string  `json:"history_timestamps"`
	HistoryValues     []float64 `json:"history_values"`
	TargetTimestamps  []string  `json:"target_timestamps"`
	TargetValues      []float64 `json:"target_values"`
}

type forecastRequest struct {
	Samples [][]samplePayload `json:"samples"`
	Model   string            `json:"model"`
}

type forecastRow struct {
	Timestamps []string     `json:"timestamps"`
	Values     []*flexValue `json:"values"`
}

type forecastResponse struct {
	Forecasts [][]forecastRow `json:"forecasts"`
}

// Client calls the Synthefy forecasting API one window per request.
// Requests share a global pace so concurrent windows do not trip the
// upstream rate limit.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	client       *xhttp.Client
	limiter      *ratelimit.Limiter
	requestDelay time.Duration
	maxRetries   int
	metrics      repository.Metrics
	logger       *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger, rl *ratelimit.Limiter, m repository.Metrics) *Client {
	fc := cfg.Forecast
	baseURL := fc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := fc.Model
	if model == "" {
		model = defaultModel
	}
	timeout := fc.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	delay := fc.RequestDelay
	if delay <= 0 {
		delay = defaultRequestDelay
	}
	retries := fc.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       fc.APIKey,
		model:        model,
		client:       xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter:      rl,
		requestDelay: delay,
		maxRetries:   retries,
		metrics:      m,
		logger:       log,
	}
}

// Ready reports whether an API key is configured.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return errors.New("SYNTHEFY_API_KEY environment variable not set")
	}
	return nil
}

// Forecast sends one window and returns the predicted values. A nil
// slice with nil error means the service produced no forecast for the
// window; callers skip such windows.
func (c *Client) Forecast(ctx context.Context, sample *models.ForecastSample) ([]float64, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	perSec := float64(time.Second) / float64(c.requestDelay)
	if err := c.limiter.Wait(ctx, paceKey, perSec, 1); err != nil {
		return nil, err
	}

	req := forecastRequest{
		Samples: [][]samplePayload{{{
			HistoryTimestamps: sample.HistoryTimestamps,
			HistoryValues:     sample.HistoryValues,
			TargetTimestamps:  sample.TargetTimestamps,
			TargetValues:      sample.TargetValues,
		}}},
		Model: c.model,
	}

	var resp forecastResponse
	operation := func() error {
		resp = forecastResponse{}
		err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    c.baseURL + "/v2/forecast",
			Headers: map[string]string{
				"Authorization": "Bearer " + c.apiKey,
				"Content-Type":  "application/json",
			},
			Body: req,
		}, &resp)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 2 * time.Second
	strategy.RandomizationFactor = 0
	strategy.Multiplier = 2

	started := time.Now()
	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(c.maxRetries-1)), ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("forecast retry",
				logger.Duration("wait", wait),
				logger.Error(err))
		})
	c.metrics.RecordLatency("forecast", time.Since(started).Seconds())
	if err != nil {
		c.metrics.RecordFetch("synthefy", "error")
		return nil, fmt.Errorf("forecast window: %w", err)
	}

	values := firstForecastValues(&resp)
	if len(values) == 0 {
		c.metrics.RecordFetch("synthefy", "empty")
		return nil, nil
	}
	c.metrics.RecordFetch("synthefy", "success")
	return values, nil
}

func retryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// firstForecastValues pulls the first target column of the first sample,
// dropping null entries.
func firstForecastValues(resp *forecastResponse) []float64 {
	if len(resp.Forecasts) == 0 || len(resp.Forecasts[0]) == 0 {
		return nil
	}
	row := resp.Forecasts[0][0]
	values := make([]float64, 0, len(row.Values))
	for _, v := range row.Values {
		if v != nil {
			values = append(values, float64(*v))
		}
	}
	return values
}

var _ domsvc.Forecaster = (*Client)(nil)
