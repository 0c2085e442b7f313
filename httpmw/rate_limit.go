/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package httpmw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/teravolt/go-corekit/log"
	"github.com/teravolt/go-corekit/ratelimit"
)

// RateLimitOnRejectFunc is a function that is called for rejecting an HTTP
// request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, decision ratelimit.Decision, logger log.FieldLogger)

// RateLimitOpts represents options for the RateLimit middleware.
type RateLimitOpts struct {
	// GetIdentity extracts the rate limiting identity from the request.
	// Nil means ratelimit.KeyFromRemoteAddr. An empty identity bypasses
	// limiting for the request.
	GetIdentity ratelimit.IdentityFn

	// OnReject is called instead of the default 429 response when the
	// request is denied.
	OnReject RateLimitOnRejectFunc
}

type rateLimitHandler struct {
	next      http.Handler
	admitter  *ratelimit.Admitter
	errDomain string
	opts      RateLimitOpts
}

// RateLimit is a middleware that admits requests through the tier admitter.
// Denied requests get a 429 response with a Retry-After header and a JSON
// error body.
func RateLimit(admitter *ratelimit.Admitter, errDomain string) func(next http.Handler) http.Handler {
	return RateLimitWithOpts(admitter, errDomain, RateLimitOpts{})
}

// RateLimitWithOpts is a more configurable version of the RateLimit middleware.
func RateLimitWithOpts(
	admitter *ratelimit.Admitter, errDomain string, opts RateLimitOpts,
) func(next http.Handler) http.Handler {
	if opts.GetIdentity == nil {
		opts.GetIdentity = ratelimit.KeyFromRemoteAddr
	}
	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{next: next, admitter: admitter, errDomain: errDomain, opts: opts}
	}
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromContext(r.Context())

	identity := h.opts.GetIdentity(r)
	if identity == "" {
		h.next.ServeHTTP(rw, r)
		return
	}

	decision, err := h.admitter.Admit(r.Context(), identity, r.URL.Path)
	if err != nil {
		logger.Error("rate limit check failed", log.Error(err))
		RespondInternalError(rw, h.errDomain, logger)
		return
	}
	if decision.Allowed {
		h.next.ServeHTTP(rw, r)
		return
	}

	if h.opts.OnReject != nil {
		h.opts.OnReject(rw, r, decision, logger)
		return
	}

	logger.Warn("request rejected by rate limiter",
		log.String("tier", decision.Tier),
		log.Duration("retry_after", decision.RetryAfter),
	)
	rw.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
	apiErr := NewError(h.errDomain, ErrCodeTooManyRequests, "Too many requests.").
		AddContext("tier", decision.Tier)
	RespondError(rw, http.StatusTooManyRequests, apiErr, logger)
}

// retryAfterSeconds rounds the duration up to whole seconds as the
// Retry-After header requires, with a minimum of 1.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
