/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/teravolt/go-corekit/expcache"
)

// TokenBucketLimiter implements token bucket rate limiting on top of
// golang.org/x/time/rate. The bucket refills at maxRate and holds up to
// burst tokens, so short bursts above the sustained rate are admitted.
type TokenBucketLimiter struct {
	getLimiter func(key string) *rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
// maxKeys bounds the number of tracked keys; zero means a single shared
// bucket for all keys.
func NewTokenBucketLimiter(maxRate Rate, burst, maxKeys int) (*TokenBucketLimiter, error) {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(float64(maxRate.Count) / maxRate.Duration.Seconds())
	newBucket := func() *rate.Limiter {
		return rate.NewLimiter(limit, burst)
	}

	if maxKeys == 0 {
		lim := newBucket()
		return &TokenBucketLimiter{
			getLimiter: func(_ string) *rate.Limiter { return lim },
		}, nil
	}

	store, err := expcache.New[*rate.Limiter](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &TokenBucketLimiter{
		getLimiter: func(key string) *rate.Limiter {
			lim, _ := store.GetOrAdd(key, newBucket)
			return lim
		},
	}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	rsv := l.getLimiter(key).Reserve()
	if !rsv.OK() {
		return false, 0, nil
	}
	if delay := rsv.Delay(); delay > 0 {
		rsv.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}
