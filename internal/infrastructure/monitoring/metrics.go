// Package monitoring wires logging, Prometheus metrics and tracing for the key server.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kunay1/seal/internal/domain/service"
)

var _ service.Metrics = (*Metrics)(nil)

const namespace = "seal"

// Metrics manages the Prometheus metrics.
type Metrics struct {
	FetchKeyRequests  *prometheus.CounterVec
	FetchKeyLatency   *prometheus.HistogramVec
	FetchKeyIDs       prometheus.Histogram
	EvaluatorLatency  *prometheus.HistogramVec
	DerivationLatency *prometheus.HistogramVec
	RateLimitHits     *prometheus.CounterVec
	CacheAccess       *prometheus.CounterVec
	VaultLatency      *prometheus.HistogramVec
	VaultErrors       *prometheus.CounterVec

	HTTPActiveRequests *prometheus.GaugeVec
	HTTPRequestLatency *prometheus.HistogramVec
	HTTPRequestErrors  *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchKeyRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_key_requests_total",
				Help:      "Total number of key requests by result and error code.",
			},
			[]string{"result", "error_code"},
		),
		FetchKeyLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_key_latency_seconds",
				Help:      "End-to-end latency of key requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		FetchKeyIDs: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_key_identifiers",
				Help:      "Number of policy identifiers per key request.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32},
			},
		),
		EvaluatorLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluator_latency_seconds",
				Help:      "Latency of chain evaluator calls by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		DerivationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "key_derivation_latency_seconds",
				Help:      "Latency of deriving and sealing a response.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"result"},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits.",
			},
			[]string{"dimension"},
		),
		CacheAccess: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_access_total",
				Help:      "Cache lookups by cache and result.",
			},
			[]string{"cache", "result"},
		),
		VaultLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vault_api_latency_seconds",
				Help:      "Latency of Vault API calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		VaultErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vault_api_errors_total",
				Help:      "Failed Vault API calls.",
			},
			[]string{"operation"},
		),
		HTTPActiveRequests: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_active_requests",
				Help:      "In-flight HTTP requests.",
			},
			[]string{"path", "method"},
		),
		HTTPRequestLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method", "status"},
		),
		HTTPRequestErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_request_errors_total",
				Help:      "HTTP responses with status >= 400.",
			},
			[]string{"path", "method", "status"},
		),
	}
}

// RecordFetchKey implements service.Metrics.
func (m *Metrics) RecordFetchKey(success bool, errorCode string, identifiers int, duration time.Duration) {
	result := resultLabel(success)
	m.FetchKeyRequests.WithLabelValues(result, errorCode).Inc()
	m.FetchKeyLatency.WithLabelValues(result).Observe(duration.Seconds())
	if identifiers > 0 {
		m.FetchKeyIDs.Observe(float64(identifiers))
	}
}

// RecordEvaluation implements service.Metrics.
func (m *Metrics) RecordEvaluation(outcome string, duration time.Duration) {
	m.EvaluatorLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordKeyDerivation implements service.Metrics.
func (m *Metrics) RecordKeyDerivation(success bool, _ int, duration time.Duration) {
	m.DerivationLatency.WithLabelValues(resultLabel(success)).Observe(duration.Seconds())
}

// RecordRateLimitHit implements service.Metrics.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHits.WithLabelValues(dimension).Inc()
}

// RecordCacheAccess implements service.Metrics.
func (m *Metrics) RecordCacheAccess(cacheType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheAccess.WithLabelValues(cacheType, result).Inc()
}

// RecordVaultAPI implements service.Metrics.
func (m *Metrics) RecordVaultAPI(operation string, duration time.Duration, err error) {
	m.VaultLatency.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.VaultErrors.WithLabelValues(operation).Inc()
	}
}

// ActiveRequestsInc marks an HTTP request as started.
func (m *Metrics) ActiveRequestsInc(path, method string) {
	m.HTTPActiveRequests.WithLabelValues(path, method).Inc()
}

// ActiveRequestsDec marks an HTTP request as finished.
func (m *Metrics) ActiveRequestsDec(path, method string) {
	m.HTTPActiveRequests.WithLabelValues(path, method).Dec()
}

// ObserveRequest records latency, and an error when status >= 400.
func (m *Metrics) ObserveRequest(path, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestLatency.WithLabelValues(path, method, code).Observe(duration.Seconds())
	if status >= 400 {
		m.HTTPRequestErrors.WithLabelValues(path, method, code).Inc()
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
