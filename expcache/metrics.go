/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package expcache

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how (effectively or not) cache is used.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// IncHits increments the total number of successfully found keys in the cache.
	IncHits()

	// IncMisses increments the total number of not found keys in the cache.
	IncMisses()

	// AddEvictions increments the total number of evicted entries.
	AddEvictions(int)

	// IncExpirations increments the total number of expired entries.
	IncExpirations()

	// IncProducerCalls increments the total number of producer invocations.
	IncProducerCalls()

	// IncProducerErrors increments the total number of failed producer invocations.
	IncProducerErrors()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the cache.
type PrometheusMetrics struct {
	EntriesAmount       prometheus.Gauge
	HitsTotal           prometheus.Counter
	MissesTotal         prometheus.Counter
	EvictionsTotal      prometheus.Counter
	ExpirationsTotal    prometheus.Counter
	ProducerCallsTotal  prometheus.Counter
	ProducerErrorsTotal prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_entries_amount",
			Help:        "Total number of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		}),
		HitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_hits_total",
			Help:        "Number of successfully found keys in the cache.",
			ConstLabels: opts.ConstLabels,
		}),
		MissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_misses_total",
			Help:        "Number of not found keys in the cache.",
			ConstLabels: opts.ConstLabels,
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_evictions_total",
			Help:        "Number of entries evicted by the LRU policy.",
			ConstLabels: opts.ConstLabels,
		}),
		ExpirationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_expirations_total",
			Help:        "Number of entries removed due to TTL expiration.",
			ConstLabels: opts.ConstLabels,
		}),
		ProducerCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_producer_calls_total",
			Help:        "Number of producer invocations (single-flight collapses concurrent calls).",
			ConstLabels: opts.ConstLabels,
		}),
		ProducerErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_producer_errors_total",
			Help:        "Number of failed producer invocations.",
			ConstLabels: opts.ConstLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.allCollectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	for _, col := range pm.allCollectors() {
		prometheus.Unregister(col)
	}
}

func (pm *PrometheusMetrics) allCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		pm.EntriesAmount,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.EvictionsTotal,
		pm.ExpirationsTotal,
		pm.ProducerCallsTotal,
		pm.ProducerErrorsTotal,
	}
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.Set(float64(amount))
}

// IncHits increments the total number of successfully found keys in the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.Inc()
}

// IncMisses increments the total number of not found keys in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.Add(float64(n))
}

// IncExpirations increments the total number of expired entries.
func (pm *PrometheusMetrics) IncExpirations() {
	pm.ExpirationsTotal.Inc()
}

// IncProducerCalls increments the total number of producer invocations.
func (pm *PrometheusMetrics) IncProducerCalls() {
	pm.ProducerCallsTotal.Inc()
}

// IncProducerErrors increments the total number of failed producer invocations.
func (pm *PrometheusMetrics) IncProducerErrors() {
	pm.ProducerErrorsTotal.Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)     {}
func (disabledMetrics) IncHits()          {}
func (disabledMetrics) IncMisses()        {}
func (disabledMetrics) AddEvictions(int)  {}
func (disabledMetrics) IncExpirations()   {}
func (disabledMetrics) IncProducerCalls() {}
func (disabledMetrics) IncProducerErrors() {}
