/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package expcache provides an in-memory cache with TTL expiration, LRU eviction,
// single-flight computation of missing entries, and Prometheus metrics.
//
// Concurrent GetOrCompute calls for the same key are collapsed into a single
// producer invocation: one caller computes, the rest wait for its result.
// In-flight computations are tracked outside the LRU store, so they can be
// neither evicted nor observed half-written. An explicit Invalidate discards
// the result of any computation that started before it, which prevents stale
// data from being resurrected after invalidation.
//
// Each logical purpose is supposed to own its cache instance with its own
// capacity and TTL; there is no process-global cache.
package expcache
