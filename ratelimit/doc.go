/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package ratelimit provides per-identity rate limiting with pluggable
// algorithms and tier-based limits keyed by route patterns.
//
// The package ships four Limiter implementations:
//
//   - SlidingWindowLimiter keeps an exact log of admission timestamps per
//     identity. It never admits more than the configured number of requests
//     in any window-sized interval and reports a precise retry-after.
//   - SlidingWindowCounterLimiter approximates the window with two counters.
//     It's cheaper per identity at the cost of boundary precision.
//   - LeakyBucketLimiter implements GCRA, a leaky bucket variant
//     (https://brandur.org/rate-limiting#gcra).
//   - TokenBucketLimiter allows short bursts above the sustained rate.
//
// Admitter ties limiters together into tiers: each tier owns a rate, an
// algorithm, and a set of route patterns (exact or glob). An incoming
// (identity, route) pair is matched to the most specific tier and admitted
// against that tier's limiter under the identity key.
package ratelimit
