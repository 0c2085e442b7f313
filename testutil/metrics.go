/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package testutil provides helpers for tests: assertions on Prometheus
// collectors used by the packages of this module.
package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

func gatherSingleMetric(t assert.TestingT, collector prometheus.Collector) (float64, bool) {
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(collector)) {
		return 0, false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) {
		return 0, false
	}
	if !assert.Equal(t, 1, len(gotMetrics)) {
		return 0, false
	}
	metric := gotMetrics[0].GetMetric()[0]
	if metric.GetCounter() != nil {
		return metric.GetCounter().GetValue(), true
	}
	return metric.GetGauge().GetValue(), true
}

// AssertCounterValue asserts that the passed prometheus.Counter has the wanted value.
func AssertCounterValue(t assert.TestingT, counter prometheus.Counter, wantValue int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	gotValue, ok := gatherSingleMetric(t, counter)
	if !ok {
		return false
	}
	return assert.Equal(t, wantValue, int(gotValue))
}

// RequireCounterValue calls AssertCounterValue and fails the test immediately in case of error.
func RequireCounterValue(t require.TestingT, counter prometheus.Counter, wantValue int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertCounterValue(t, counter, wantValue) {
		return
	}
	t.FailNow()
}

// AssertGaugeValue asserts that the passed prometheus.Gauge has the wanted value.
func AssertGaugeValue(t assert.TestingT, gauge prometheus.Gauge, wantValue int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	gotValue, ok := gatherSingleMetric(t, gauge)
	if !ok {
		return false
	}
	return assert.Equal(t, wantValue, int(gotValue))
}

// RequireGaugeValue calls AssertGaugeValue and fails the test immediately in case of error.
func RequireGaugeValue(t require.TestingT, gauge prometheus.Gauge, wantValue int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertGaugeValue(t, gauge, wantValue) {
		return
	}
	t.FailNow()
}
