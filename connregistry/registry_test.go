/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package connregistry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/teravolt/go-corekit/log/logtest"
	"github.com/teravolt/go-corekit/testutil"
)

type event struct {
	Seq int
}

func TestRegistryAttachPublishDetach(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{QueueDepth: 4})

	conn, err := r.Attach()
	require.NoError(t, err)
	require.NotEmpty(t, conn.ID())
	require.Equal(t, 1, r.ConnsCount())

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, conn.ID(), event{Seq: 1}))
	require.NoError(t, r.Publish(ctx, conn.ID(), event{Seq: 2}))

	require.Equal(t, event{Seq: 1}, <-conn.Receive())
	require.Equal(t, event{Seq: 2}, <-conn.Receive())

	require.True(t, r.Detach(conn.ID()))
	require.Equal(t, 0, r.ConnsCount())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after detach")
	}
	_, open := <-conn.Receive()
	require.False(t, open, "receive channel should be closed after detach")
}

func TestRegistryDetachIsIdempotent(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{})

	conn, err := r.Attach()
	require.NoError(t, err)

	require.True(t, r.Detach(conn.ID()))
	require.False(t, r.Detach(conn.ID()), "second detach should be a no-op")
	require.False(t, r.Detach("unknown"))

	// Concurrent detaches of the same connection must not panic on double close.
	conn2, err := r.Attach()
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Detach(conn2.ID())
		}()
	}
	wg.Wait()
	require.Equal(t, 0, r.ConnsCount())
}

func TestRegistryPublishErrors(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{})
	ctx := context.Background()

	err := r.Publish(ctx, "unknown", event{})
	require.ErrorIs(t, err, ErrConnNotFound)

	conn, err := r.Attach()
	require.NoError(t, err)
	r.Detach(conn.ID())
	err = r.Publish(ctx, conn.ID(), event{})
	require.ErrorIs(t, err, ErrConnNotFound, "detached conn is unregistered")

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	err = r.Publish(canceledCtx, conn.ID(), event{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistryPublishDropsOldestOnFullQueue(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	r := NewRegistry[event](logRecorder, nil, Options{QueueDepth: 2})

	conn, err := r.Attach()
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Publish(ctx, conn.ID(), event{Seq: i}))
	}

	// The queue holds the 2 newest messages; 1..3 were dropped oldest-first.
	require.Equal(t, event{Seq: 4}, <-conn.Receive())
	require.Equal(t, event{Seq: 5}, <-conn.Receive())
	require.Equal(t, int64(3), r.DroppedCount())

	_, found := logRecorder.FindEntry("connection queue full, oldest message dropped")
	require.True(t, found, "drops should be logged")
}

func TestRegistryMaxConns(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{MaxConns: 1})

	conn, err := r.Attach()
	require.NoError(t, err)

	_, err = r.Attach()
	require.ErrorIs(t, err, ErrRegistryFull)

	r.Detach(conn.ID())
	_, err = r.Attach()
	require.NoError(t, err)
}

func TestRegistryAttachWithRetry(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{MaxConns: 1})

	first, err := r.Attach()
	require.NoError(t, err)

	// Free the slot while the second attach is backing off.
	go func() {
		time.Sleep(30 * time.Millisecond)
		r.Detach(first.ID())
	}()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	conn, err := r.AttachWithRetry(context.Background(), policy)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), conn.ID())
}

func TestRegistryAttachWithRetryContextBound(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{MaxConns: 1})

	_, err := r.Attach()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	_, err = r.AttachWithRetry(ctx, policy)
	require.Error(t, err)
}

func TestRegistryHeartbeatSweep(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{HeartbeatTimeout: 50 * time.Millisecond})

	silent, err := r.Attach()
	require.NoError(t, err)
	chatty, err := r.Attach()
	require.NoError(t, err)

	require.ErrorIs(t, r.Heartbeat("unknown"), ErrConnNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunPeriodicSweep(ctx, 10*time.Millisecond)

	stopBeating := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopBeating:
				return
			case <-time.After(10 * time.Millisecond):
				_ = r.Heartbeat(chatty.ID())
			}
		}
	}()
	defer close(stopBeating)

	require.Eventually(t, func() bool {
		select {
		case <-silent.Done():
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "silent connection should be swept")

	select {
	case <-chatty.Done():
		t.Fatal("heartbeating connection must not be swept")
	default:
	}
	require.Equal(t, 1, r.ConnsCount())
}

func TestRegistryConcurrentPublishAndDetach(t *testing.T) {
	r := NewRegistry[event](nil, nil, Options{QueueDepth: 4})
	ctx := context.Background()

	const numConns = 8
	conns := make([]*Conn[event], 0, numConns)
	for i := 0; i < numConns; i++ {
		conn, err := r.Attach()
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := r.Publish(ctx, id, event{Seq: j})
				if err != nil {
					return
				}
			}
		}(conn.ID())
		go func(i int, id string) {
			defer wg.Done()
			if i%2 == 0 {
				r.Detach(id)
			}
		}(i, conn.ID())
	}
	wg.Wait()

	require.Equal(t, numConns/2, r.ConnsCount())
	for i, conn := range conns {
		if i%2 == 0 {
			select {
			case <-conn.Done():
			default:
				t.Fatalf("conn #%d should be detached", i)
			}
		}
	}
}

func TestRegistryMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	r := NewRegistry[event](nil, pm, Options{QueueDepth: 1})
	ctx := context.Background()

	conn, err := r.Attach()
	require.NoError(t, err)
	testutil.RequireGaugeValue(t, pm.ConnsAmount, 1)

	require.NoError(t, r.Publish(ctx, conn.ID(), event{Seq: 1}))
	require.NoError(t, r.Publish(ctx, conn.ID(), event{Seq: 2}))
	testutil.RequireCounterValue(t, pm.PublishedTotal, 2)
	testutil.RequireCounterValue(t, pm.DroppedTotal, 1)

	r.sweep(time.Now().Add(DefaultHeartbeatTimeout + time.Second))
	testutil.RequireCounterValue(t, pm.SweptTotal, 1)
	testutil.RequireGaugeValue(t, pm.ConnsAmount, 0)
}

func TestRegistryConfig(t *testing.T) {
	cfg := NewDefaultConfig("connRegistry")
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultQueueDepth, cfg.QueueDepth)

	cfg.QueueDepth = 0
	require.EqualError(t, cfg.Validate(), "queueDepth should be > 0, got 0")

	cfg = NewDefaultConfig("connRegistry")
	cfg.MaxConns = -1
	require.Error(t, cfg.Validate())

	cfg = NewDefaultConfig("connRegistry")
	r, err := NewRegistryFromConfig[event](cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, r.ConnsCount())
}
