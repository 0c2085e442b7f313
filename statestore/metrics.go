/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package statestore

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics about stored records.
type MetricsCollector interface {
	// SetAmount sets the total number of records in the collection.
	SetAmount(collection string, amount int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the state store.
type PrometheusMetrics struct {
	RecordsAmount *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		RecordsAmount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   opts.Namespace,
				Name:        "statestore_records_amount",
				Help:        "Total number of records in the collection.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"collection"},
		),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.RecordsAmount)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.RecordsAmount)
}

// SetAmount sets the total number of records in the collection.
func (pm *PrometheusMetrics) SetAmount(collection string, amount int) {
	pm.RecordsAmount.With(prometheus.Labels{"collection": collection}).Set(float64(amount))
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(string, int) {}
