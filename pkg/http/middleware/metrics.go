package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "ChartPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reqTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartpulse_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"route", "method", "status"})

	reqDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartpulse_http_request_duration_seconds",
		Help:    "Request latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status", "class"})

	reqInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chartpulse_http_in_flight_requests",
		Help: "Requests currently being served",
	}, []string{"route", "method"})

	respSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartpulse_http_response_size_bytes",
		Help:    "Response body size in bytes",
		Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
	}, []string{"route", "method", "status", "class"})

	metricsOnce sync.Once
)

// Metrics records request metrics and reports failures and slow requests
// through the structured logger. Routes are labelled with the echo template,
// for example /api/market-data/:symbol, to keep label cardinality low.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	metricsOnce.Do(func() {
		prometheus.MustRegister(reqTotal, reqDuration, reqInFlight, respSize)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			reqInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			res := c.Response()
			status := strconv.Itoa(res.Status)
			class := statusClass(res.Status)

			reqTotal.WithLabelValues(route, method, status).Inc()
			reqDuration.WithLabelValues(route, method, status, class).Observe(elapsed.Seconds())
			respSize.WithLabelValues(route, method, status, class).Observe(float64(res.Size))
			reqInFlight.WithLabelValues(route, method).Dec()

			if l == nil {
				return err
			}
			if res.Status >= 500 {
				l.Error("http request failed",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.String("status", status),
					applogger.Duration("duration_ms", elapsed),
					applogger.Int64("bytes", res.Size),
				)
			} else if slowThreshold > 0 && elapsed >= slowThreshold {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.String("status", status),
					applogger.Duration("duration_ms", elapsed),
					applogger.Int64("bytes", res.Size),
				)
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
