/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of admission metrics.
type MetricsCollector interface {
	// IncAllowed increments the counter of admitted requests for the tier.
	IncAllowed(tier string)

	// IncDenied increments the counter of denied requests for the tier.
	IncDenied(tier string)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for rate limiting.
type PrometheusMetrics struct {
	AllowedTotal *prometheus.CounterVec
	DeniedTotal  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		AllowedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "rate_limit_allowed_total",
				Help:        "Total number of requests admitted by the rate limiter.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"tier"},
		),
		DeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "rate_limit_denied_total",
				Help:        "Total number of requests denied by the rate limiter.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"tier"},
		),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.AllowedTotal, pm.DeniedTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AllowedTotal)
	prometheus.Unregister(pm.DeniedTotal)
}

// IncAllowed increments the counter of admitted requests for the tier.
func (pm *PrometheusMetrics) IncAllowed(tier string) {
	pm.AllowedTotal.With(prometheus.Labels{"tier": tier}).Inc()
}

// IncDenied increments the counter of denied requests for the tier.
func (pm *PrometheusMetrics) IncDenied(tier string) {
	pm.DeniedTotal.With(prometheus.Labels{"tier": tier}).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncAllowed(string) {}
func (disabledMetrics) IncDenied(string)  {}
