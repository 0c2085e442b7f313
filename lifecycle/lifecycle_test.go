/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teravolt/go-corekit/connregistry"
	"github.com/teravolt/go-corekit/expcache"
	"github.com/teravolt/go-corekit/log/logtest"
	"github.com/teravolt/go-corekit/ratelimit"
)

func TestGroupStopsOnContextCancel(t *testing.T) {
	cache, err := expcache.New[string](10, nil)
	require.NoError(t, err)
	limiter, err := ratelimit.NewSlidingWindowLimiter(ratelimit.Rate{Count: 10, Duration: time.Second})
	require.NoError(t, err)
	registry := connregistry.NewRegistry[string](nil, nil, connregistry.Options{})

	group := NewGroup(nil).
		Add("cache-cleanup", WorkerFunc(func(ctx context.Context) error {
			cache.RunPeriodicCleanup(ctx, 10*time.Millisecond)
			return nil
		})).
		Add("limiter-reaping", WorkerFunc(func(ctx context.Context) error {
			limiter.RunPeriodicReaping(ctx, 10*time.Millisecond)
			return nil
		})).
		Add("conn-sweep", WorkerFunc(func(ctx context.Context) error {
			registry.RunPeriodicSweep(ctx, 10*time.Millisecond)
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- group.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean stop")
	case <-time.After(time.Second):
		t.Fatal("group did not stop after context cancellation")
	}
}

func TestGroupPropagatesWorkerError(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	bodyErr := errors.New("boom")

	group := NewGroup(logRecorder).
		Add("failing", WorkerFunc(func(ctx context.Context) error {
			return bodyErr
		})).
		Add("long-running", WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))

	err := group.Run(context.Background())
	require.ErrorIs(t, err, bodyErr)
	require.Contains(t, err.Error(), `worker "failing"`)

	_, found := logRecorder.FindEntry("worker stopped with error")
	require.True(t, found)
}

func TestGroupRecoversWorkerPanic(t *testing.T) {
	group := NewGroup(nil).
		Add("panicking", WorkerFunc(func(ctx context.Context) error {
			panic("unexpected state")
		}))

	err := group.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), `worker "panicking" panicked`)
}

type testMetrics struct {
	registered   bool
	unregistered bool
}

func (m *testMetrics) MustRegisterMetrics() { m.registered = true }
func (m *testMetrics) UnregisterMetrics()   { m.unregistered = true }

func TestGroupManagesMetricsLifetime(t *testing.T) {
	metrics := &testMetrics{}
	group := NewGroup(nil).
		AddMetrics(metrics).
		Add("noop", WorkerFunc(func(ctx context.Context) error { return nil }))

	require.NoError(t, group.Run(context.Background()))
	require.True(t, metrics.registered)
	require.True(t, metrics.unregistered)
}
