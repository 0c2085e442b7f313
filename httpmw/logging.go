/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package httpmw

import (
	"context"
	"net/http"
	"time"

	"github.com/teravolt/go-corekit/log"
)

type ctxKey int

const loggerCtxKey ctxKey = iota

// NewContextWithLogger creates a new context with the logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// GetLoggerFromContext extracts the logger from the context.
// Returns a disabled logger if the context carries none, so callers don't
// need a nil check.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	if logger, ok := ctx.Value(loggerCtxKey).(log.FieldLogger); ok {
		return logger
	}
	return log.NewDisabledLogger()
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusCapturingResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusCapturingResponseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
}

// Logging is a middleware that puts the logger into the request context and
// logs each served request with its method, path, status, and duration.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	capturingRW := &statusCapturingResponseWriter{ResponseWriter: rw}

	h.next.ServeHTTP(capturingRW, r.WithContext(NewContextWithLogger(r.Context(), h.logger)))

	status := capturingRW.status
	if status == 0 {
		status = http.StatusOK
	}
	h.logger.Info("request served",
		log.String("method", r.Method),
		log.String("path", r.URL.Path),
		log.Int("status", status),
		log.Duration("duration", time.Since(start)),
	)
}
