/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package httpmw

import (
	"github.com/go-chi/chi/v5"

	"github.com/teravolt/go-corekit/log"
	"github.com/teravolt/go-corekit/ratelimit"
)

// RouterOpts represents options for NewRouter.
type RouterOpts struct {
	// Logger is used by the Logging middleware and error responses.
	// Nil means a disabled logger.
	Logger log.FieldLogger

	// ErrDomain is the domain reported in error response bodies.
	ErrDomain string

	// Admitter enables the RateLimit middleware when non-nil.
	Admitter *ratelimit.Admitter

	// RateLimitOpts tunes the RateLimit middleware.
	RateLimitOpts RateLimitOpts

	// MaxBodySizeBytes enables the RequestBodyLimit middleware when non-zero.
	MaxBodySizeBytes uint64
}

// NewRouter creates a chi router with the package's middleware installed in
// the right order: logging first, then body limiting, then rate limiting.
func NewRouter(opts RouterOpts) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	router := chi.NewRouter()
	router.Use(Logging(logger))
	if opts.MaxBodySizeBytes > 0 {
		router.Use(RequestBodyLimit(opts.MaxBodySizeBytes, opts.ErrDomain))
	}
	if opts.Admitter != nil {
		router.Use(RateLimitWithOpts(opts.Admitter, opts.ErrDomain, opts.RateLimitOpts))
	}
	return router
}
