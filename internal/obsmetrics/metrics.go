// Package obsmetrics holds the Prometheus instrumentation for the
// trust evaluation pipeline.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the pipeline emits.
type Metrics struct {
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	ProviderDuration    *prometheus.HistogramVec
	ProviderErrorsTotal *prometheus.CounterVec
	CacheHitsTotal      prometheus.Counter
	InflightCoalesced   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trust_evaluations_total",
				Help: "Total number of completed trust evaluations",
			},
			[]string{"recommendation"},
		),

		EvaluationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trust_evaluation_duration_seconds",
				Help:    "End-to-end duration of a trust evaluation",
				Buckets: prometheus.DefBuckets,
			},
		),

		ProviderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trust_provider_duration_seconds",
				Help:    "Duration of an individual provider dispatch",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"provider"},
		),

		ProviderErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trust_provider_errors_total",
				Help: "Total number of provider dispatch failures",
			},
			[]string{"provider", "reason"}, // reason: error, timeout, circuit_open
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trust_cache_hits_total",
				Help: "Total number of evaluations served from cache",
			},
		),

		InflightCoalesced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trust_inflight_coalesced_total",
				Help: "Total number of evaluations coalesced onto an in-flight query for the same subject",
			},
		),
	}
}

// RecordEvaluation records a completed evaluation's outcome and
// duration.
func (m *Metrics) RecordEvaluation(recommendation string, durationSeconds float64) {
	m.EvaluationsTotal.WithLabelValues(recommendation).Inc()
	m.EvaluationDuration.Observe(durationSeconds)
}

// RecordProviderDispatch records one provider call's duration and, if
// it failed, the reason.
func (m *Metrics) RecordProviderDispatch(provider string, durationSeconds float64, reason string) {
	m.ProviderDuration.WithLabelValues(provider).Observe(durationSeconds)
	if reason != "" {
		m.ProviderErrorsTotal.WithLabelValues(provider, reason).Inc()
	}
}

// RecordCacheHit increments the cache-hit counter.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordInflightCoalesced increments the in-flight-coalesce counter.
func (m *Metrics) RecordInflightCoalesced() {
	m.InflightCoalesced.Inc()
}
