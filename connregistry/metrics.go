/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package connregistry

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of connection registry metrics.
type MetricsCollector interface {
	// SetConnsAmount sets the number of attached connections.
	SetConnsAmount(amount int)

	// IncPublished increments the counter of successfully enqueued messages.
	IncPublished()

	// IncDropped increments the counter of messages dropped from full queues.
	IncDropped()

	// IncSwept increments the counter of connections detached by the heartbeat sweeper.
	IncSwept()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the connection registry.
type PrometheusMetrics struct {
	ConnsAmount    prometheus.Gauge
	PublishedTotal prometheus.Counter
	DroppedTotal   prometheus.Counter
	SweptTotal     prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		ConnsAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "connregistry_conns_amount",
			Help:        "Number of attached connections.",
			ConstLabels: opts.ConstLabels,
		}),
		PublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "connregistry_published_total",
			Help:        "Total number of messages enqueued for delivery.",
			ConstLabels: opts.ConstLabels,
		}),
		DroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "connregistry_dropped_total",
			Help:        "Total number of messages dropped because the connection queue was full.",
			ConstLabels: opts.ConstLabels,
		}),
		SweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "connregistry_swept_total",
			Help:        "Total number of connections detached by the heartbeat sweeper.",
			ConstLabels: opts.ConstLabels,
		}),
	}
}

func (pm *PrometheusMetrics) allCollectors() []prometheus.Collector {
	return []prometheus.Collector{pm.ConnsAmount, pm.PublishedTotal, pm.DroppedTotal, pm.SweptTotal}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.allCollectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	for _, c := range pm.allCollectors() {
		prometheus.Unregister(c)
	}
}

// SetConnsAmount sets the number of attached connections.
func (pm *PrometheusMetrics) SetConnsAmount(amount int) {
	pm.ConnsAmount.Set(float64(amount))
}

// IncPublished increments the counter of successfully enqueued messages.
func (pm *PrometheusMetrics) IncPublished() {
	pm.PublishedTotal.Inc()
}

// IncDropped increments the counter of messages dropped from full queues.
func (pm *PrometheusMetrics) IncDropped() {
	pm.DroppedTotal.Inc()
}

// IncSwept increments the counter of connections detached by the heartbeat sweeper.
func (pm *PrometheusMetrics) IncSwept() {
	pm.SweptTotal.Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetConnsAmount(int) {}
func (disabledMetrics) IncPublished()      {}
func (disabledMetrics) IncDropped()        {}
func (disabledMetrics) IncSwept()          {}
