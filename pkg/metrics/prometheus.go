package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	runMAPE       *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	cacheOutcomes *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_source_fetches_total",
				Help: "Total number of upstream series fetches",
			},
			[]string{"source", "status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_messages_sent_total",
				Help: "Total number of price batches sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		runMAPE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartpulse_backtest_run_mape",
				Help: "Overall MAPE of the most recent backtest run per asset",
			},
			[]string{"asset_class", "symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartpulse_cache_requests_total",
				Help: "Cache lookups by outcome",
			},
			[]string{"keyspace", "outcome"},
		),
	}
}

// RecordFetch records an upstream fetch attempt and its outcome.
func (r *Recorder) RecordFetch(source, status string) {
	r.fetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordMessageSent records a price batch sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordRunMAPE records the overall MAPE of a finished backtest run.
func (r *Recorder) RecordRunMAPE(assetClass, symbol string, mape float64) {
	r.runMAPE.WithLabelValues(assetClass, symbol).Set(mape)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheOutcome records a cache hit or miss for a keyspace.
func (r *Recorder) RecordCacheOutcome(keyspace, outcome string) {
	r.cacheOutcomes.WithLabelValues(keyspace, outcome).Inc()
}
