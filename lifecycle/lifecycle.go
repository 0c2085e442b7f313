/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package lifecycle runs the background maintenance loops the other packages
// of this module rely on (cache cleanup, rate limiter reaping, connection
// sweeping) as one supervised group with shared shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/teravolt/go-corekit/log"
)

// Worker performs some (usually long-running) work until its context is done.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// MetricsRegisterer is an interface for objects that can register their own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}

type namedWorker struct {
	name   string
	worker Worker
}

// Group supervises a set of named workers. All workers start together and
// share one context: the first worker error (or cancellation of the outer
// context) stops the whole group.
type Group struct {
	logger            log.FieldLogger
	workers           []namedWorker
	metricsRegistrars []MetricsRegisterer
}

// NewGroup creates a new Group.
// Logger may be nil, in this case logging is disabled.
func NewGroup(logger log.FieldLogger) *Group {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Group{logger: logger}
}

// Add registers a worker under a name used in logs.
func (g *Group) Add(name string, worker Worker) *Group {
	g.workers = append(g.workers, namedWorker{name: name, worker: worker})
	return g
}

// AddMetrics registers a metrics registerer whose metrics live for the
// duration of Run.
func (g *Group) AddMetrics(mr MetricsRegisterer) *Group {
	g.metricsRegistrars = append(g.metricsRegistrars, mr)
	return g
}

// Run starts all workers and blocks until they stop.
// It returns the first worker error, or nil if the group was stopped by
// cancelling ctx. A panicking worker is reported as an error instead of
// taking the process down.
func (g *Group) Run(ctx context.Context) error {
	for _, mr := range g.metricsRegistrars {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	grp, ctx := errgroup.WithContext(ctx)
	for _, nw := range g.workers {
		nw := nw
		grp.Go(func() (resErr error) {
			defer func() {
				if p := recover(); p != nil {
					const logStackSize = 8192
					stack := make([]byte, logStackSize)
					stack = stack[:runtime.Stack(stack, false)]
					g.logger.Error(fmt.Sprintf("worker panic: %+v", p),
						log.String("worker", nw.name), log.String("stack", string(stack)))
					resErr = fmt.Errorf("worker %q panicked: %v", nw.name, p)
				}
			}()

			g.logger.Info("worker started", log.String("worker", nw.name))
			err := nw.worker.Run(ctx)
			if err != nil && ctx.Err() == nil {
				g.logger.Error("worker stopped with error",
					log.String("worker", nw.name), log.Error(err))
				return fmt.Errorf("worker %q: %w", nw.name, err)
			}
			g.logger.Info("worker stopped", log.String("worker", nw.name))
			return nil
		})
	}

	return grp.Wait()
}
