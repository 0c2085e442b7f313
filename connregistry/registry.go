/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package connregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/teravolt/go-corekit/log"
)

// Errors returned by Registry operations.
var (
	// ErrConnNotFound is returned when the connection id is not attached.
	ErrConnNotFound = errors.New("connection not found")

	// ErrConnClosed is returned when publishing to a connection that was
	// detached between the lookup and the send.
	ErrConnClosed = errors.New("connection closed")

	// ErrRegistryFull is returned by Attach when the connection limit is reached.
	ErrRegistryFull = errors.New("connection limit reached")
)

// Conn is one attached connection. Messages published to it are read from
// the Receive channel; Done is closed when the connection is detached.
type Conn[M any] struct {
	id    string
	queue chan M
	done  chan struct{}

	lastHeartbeat atomic.Time

	closeOnce sync.Once

	// sendMu serializes queue writes so the drop-oldest path cannot
	// interleave with another publisher.
	sendMu sync.Mutex
}

// ID returns the connection id assigned at attach time.
func (c *Conn[M]) ID() string {
	return c.id
}

// Receive returns the channel the connection's messages arrive on.
// The channel is closed when the connection is detached.
func (c *Conn[M]) Receive() <-chan M {
	return c.queue
}

// Done returns a channel that is closed when the connection is detached.
func (c *Conn[M]) Done() <-chan struct{} {
	return c.done
}

func (c *Conn[M]) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Registry tracks attached connections and routes published messages to them.
// All methods are safe for concurrent use.
type Registry[M any] struct {
	queueDepth       int
	maxConns         int
	heartbeatTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*Conn[M]

	droppedTotal atomic.Int64

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// Options represents options for the Registry.
type Options struct {
	// QueueDepth is the per-connection queue capacity. Zero means DefaultQueueDepth.
	QueueDepth int

	// MaxConns limits the number of attached connections. Zero means no limit.
	MaxConns int

	// HeartbeatTimeout is the silence period after which the sweeper detaches
	// a connection. Zero means DefaultHeartbeatTimeout.
	HeartbeatTimeout time.Duration
}

// NewRegistry creates a new Registry.
// Logger and metrics collector may be nil, in this case logging/metrics are disabled.
func NewRegistry[M any](logger log.FieldLogger, metricsCollector MetricsCollector, opts Options) *Registry[M] {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	return &Registry[M]{
		queueDepth:       opts.QueueDepth,
		maxConns:         opts.MaxConns,
		heartbeatTimeout: opts.HeartbeatTimeout,
		conns:            make(map[string]*Conn[M]),
		logger:           logger,
		metricsCollector: metricsCollector,
	}
}

// Attach registers a new connection and returns it.
func (r *Registry[M]) Attach() (*Conn[M], error) {
	conn := &Conn[M]{
		id:    xid.New().String(),
		queue: make(chan M, r.queueDepth),
		done:  make(chan struct{}),
	}
	conn.lastHeartbeat.Store(time.Now())

	r.mu.Lock()
	if r.maxConns > 0 && len(r.conns) >= r.maxConns {
		r.mu.Unlock()
		return nil, ErrRegistryFull
	}
	r.conns[conn.id] = conn
	r.metricsCollector.SetConnsAmount(len(r.conns))
	r.mu.Unlock()

	r.logger.Debug("connection attached", log.String("conn_id", conn.id))
	return conn, nil
}

// AttachWithRetry attaches a new connection, retrying with the caller-supplied
// backoff policy while the registry is full. The wait is bounded by ctx.
func (r *Registry[M]) AttachWithRetry(ctx context.Context, policy backoff.BackOff) (*Conn[M], error) {
	var conn *Conn[M]
	attach := func() error {
		var err error
		if conn, err = r.Attach(); err != nil {
			if errors.Is(err, ErrRegistryFull) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(attach, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// Publish enqueues a message for the connection. If the connection's queue is
// full, the oldest queued message is dropped to make room; the drop is
// counted and logged. Publishing to a detached connection returns
// ErrConnClosed, to an unknown id ErrConnNotFound.
func (r *Registry[M]) Publish(ctx context.Context, connID string, msg M) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	conn, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("publish to %q: %w", connID, ErrConnNotFound)
	}

	conn.sendMu.Lock()
	defer conn.sendMu.Unlock()

	if conn.isClosed() {
		// Lost the race with a detach; the detach path has already
		// unregistered the connection.
		return fmt.Errorf("publish to %q: %w", connID, ErrConnClosed)
	}

	for {
		select {
		case conn.queue <- msg:
			r.metricsCollector.IncPublished()
			return nil
		default:
		}
		select {
		case <-conn.queue:
			r.droppedTotal.Inc()
			r.metricsCollector.IncDropped()
			r.logger.Warn("connection queue full, oldest message dropped",
				log.String("conn_id", connID), log.Int64("dropped_total", r.droppedTotal.Load()))
		default:
		}
	}
}

// Heartbeat marks the connection as alive, deferring the sweeper.
func (r *Registry[M]) Heartbeat(connID string) error {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("heartbeat for %q: %w", connID, ErrConnNotFound)
	}
	conn.lastHeartbeat.Store(time.Now())
	return nil
}

// Detach unregisters the connection and closes its channels.
// It reports whether the connection was still attached; detaching an unknown
// or already-detached connection is a no-op.
func (r *Registry[M]) Detach(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(connID, "requested")
}

// detachLocked is the single path all detachments go through.
// Called with r.mu held.
func (r *Registry[M]) detachLocked(connID string, reason string) bool {
	conn, ok := r.conns[connID]
	if !ok {
		return false
	}
	delete(r.conns, connID)
	r.metricsCollector.SetConnsAmount(len(r.conns))
	conn.closeOnce.Do(func() {
		close(conn.done)
		// A publisher already past the closed check may still hold sendMu;
		// wait for it before closing the queue.
		conn.sendMu.Lock()
		close(conn.queue)
		conn.sendMu.Unlock()
	})
	r.logger.Debug("connection detached",
		log.String("conn_id", connID), log.String("reason", reason))
	return true
}

// ConnsCount returns the number of attached connections.
func (r *Registry[M]) ConnsCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// DroppedCount returns the total number of messages dropped due to full queues.
func (r *Registry[M]) DroppedCount() int64 {
	return r.droppedTotal.Load()
}

// RunPeriodicSweep detaches connections whose last heartbeat is older than
// the heartbeat timeout. It's supposed to be run in a separate goroutine.
func (r *Registry[M]) RunPeriodicSweep(ctx context.Context, sweepInterval time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry[M]) sweep(now time.Time) {
	deadline := now.Add(-r.heartbeatTimeout)

	r.mu.Lock()
	var stale []string
	for id, conn := range r.conns {
		if conn.lastHeartbeat.Load().Before(deadline) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if r.detachLocked(id, "heartbeat timeout") {
			r.metricsCollector.IncSwept()
		}
	}
	r.mu.Unlock()
}
