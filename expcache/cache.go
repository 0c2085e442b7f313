/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package expcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ProducerFn computes the value for a missing cache entry.
// It must return an explicit error on failure instead of a partial result.
// It's executed outside of the cache lock and may be slow/IO-bound.
type ProducerFn[V any] func(ctx context.Context) (V, error)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// claimState tracks one in-flight computation.
// Invalidate marks it discarded so its result will not be installed.
type claimState struct {
	discarded bool
}

// Cache is a string-keyed cache with TTL expiration, LRU eviction,
// and single-flight de-duplication of concurrent computations.
type Cache[V any] struct {
	maxEntries int
	defaultTTL time.Duration

	// producerTimeout bounds the producer execution. The producer is driven
	// by the claiming caller but is deliberately not bound to any single
	// caller's context: a waiter that stops waiting must not cancel the
	// computation other waiters depend on.
	producerTimeout time.Duration

	mu       sync.Mutex
	lruList  *list.List
	entries  map[string]*list.Element // map of cache entries, value is a lruList element
	inflight map[string]*claimState

	group singleflight.Group

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is the TTL for entries added without an explicit TTL.
	// Zero means no expiration.
	DefaultTTL time.Duration

	// ProducerTimeout bounds the execution time of producer functions.
	// Zero means no timeout.
	ProducerTimeout time.Duration
}

// New creates a new Cache with the provided maximum number of entries and metrics collector.
// Metrics collector may be nil, in this case metrics are disabled.
func New[V any](maxEntries int, metricsCollector MetricsCollector) (*Cache[V], error) {
	return NewWithOpts[V](maxEntries, metricsCollector, Options{})
}

// NewWithOpts creates a new Cache with the provided maximum number of entries,
// metrics collector, and options.
func NewWithOpts[V any](maxEntries int, metricsCollector MetricsCollector, opts Options) (*Cache[V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Cache[V]{
		maxEntries:       maxEntries,
		defaultTTL:       opts.DefaultTTL,
		producerTimeout:  opts.ProducerTimeout,
		lruList:          list.New(),
		entries:          make(map[string]*list.Element),
		inflight:         make(map[string]*claimState),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns a value from the cache by the provided key.
func (c *Cache[V]) Get(key string) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// Add adds a value to the cache with the provided key and the default TTL.
// If the cache is full, the least recently used entry will be evicted.
func (c *Cache[V]) Add(key string, value V) {
	c.AddWithTTL(key, value, c.defaultTTL)
}

// AddWithTTL adds a value to the cache with the provided key and TTL.
// If the cache is full, the least recently used entry will be evicted.
// Expired entries are removed on access or during periodic cleanup (see RunPeriodicCleanup).
func (c *Cache[V]) AddWithTTL(key string, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[V]{key: key, value: value, expiresAt: expiresAt}
		return
	}
	c.addNew(key, value, expiresAt)
}

// GetOrAdd returns a value from the cache by the provided key.
// If the key does not exist, valueProvider is called under the cache lock
// to create the value. It's intended for cheap, infallible providers
// (e.g. creating a per-key limiter); for slow or fallible computations
// use GetOrCompute.
func (c *Cache[V]) GetOrAdd(key string, valueProvider func() V) (value V, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, exists = c.get(key); exists {
		return value, exists
	}
	var expiresAt time.Time
	if c.defaultTTL > 0 {
		expiresAt = time.Now().Add(c.defaultTTL)
	}
	value = valueProvider()
	c.addNew(key, value, expiresAt)
	return value, false
}

// GetOrCompute returns a cached value by the provided key, computing it with
// the default TTL if it's missing. See GetOrComputeWithTTL for details.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, producer ProducerFn[V]) (V, error) {
	return c.GetOrComputeWithTTL(ctx, key, c.defaultTTL, producer)
}

// GetOrComputeWithTTL returns a cached value by the provided key.
// If there is no unexpired entry for the key, the producer is invoked to compute one,
// with the single-flight guarantee: among all concurrent callers for the same key
// exactly one executes the producer, the rest wait and observe the same result.
// A producer error is propagated to every waiter and nothing is cached.
//
// The wait is bounded by ctx: a caller whose context is done gets the context
// error and stops waiting without cancelling the in-flight computation.
func (c *Cache[V]) GetOrComputeWithTTL(
	ctx context.Context, key string, ttl time.Duration, producer ProducerFn[V],
) (V, error) {
	c.mu.Lock()
	if value, ok := c.get(key); ok {
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	resCh := c.group.DoChan(key, func() (interface{}, error) {
		return c.compute(key, ttl, producer)
	})

	var zero V
	select {
	case res := <-resCh:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// compute is executed by the single claiming caller.
func (c *Cache[V]) compute(key string, ttl time.Duration, producer ProducerFn[V]) (interface{}, error) {
	c.mu.Lock()
	// The entry could have been added while this caller was acquiring the claim.
	if value, ok := c.get(key); ok {
		c.mu.Unlock()
		return value, nil
	}
	claim := &claimState{}
	c.inflight[key] = claim
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.inflight[key] == claim {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
	}()

	ctx := context.Background()
	if c.producerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.producerTimeout)
		defer cancel()
	}

	c.metricsCollector.IncProducerCalls()
	value, err := producer(ctx)
	if err != nil {
		c.metricsCollector.IncProducerErrors()
		return nil, err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	if !claim.discarded {
		c.addNew(key, value, expiresAt)
	}
	c.mu.Unlock()
	return value, nil
}

// Invalidate removes an entry immediately regardless of its state.
// An in-flight computation for the key is allowed to finish, but its result
// is discarded instead of being installed, so invalidated data cannot be
// resurrected by a computation that started before the invalidation.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()

	if claim, ok := c.inflight[key]; ok {
		claim.discarded = true
	}

	elem, ok := c.entries[key]
	if ok {
		c.lruList.Remove(elem)
		delete(c.entries, key)
		c.metricsCollector.SetAmount(len(c.entries))
	}
	c.mu.Unlock()

	// Late arrivals must start a fresh computation instead of
	// joining the discarded one.
	c.group.Forget(key)
	return ok
}

// Purge clears the cache. In-flight computations are not affected.
// All removed entries will not be counted as evictions.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metricsCollector.SetAmount(0)
	c.entries = make(map[string]*list.Element)
	c.lruList.Init()
}

// Len returns the number of ready entries in the cache.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) get(key string) (value V, ok bool) {
	elem, hit := c.entries[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, false
	}
	entry := elem.Value.(*cacheEntry[V])
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		c.lruList.Remove(elem)
		delete(c.entries, key)
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.IncExpirations()
		c.metricsCollector.IncMisses()
		return value, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return entry.value, true
}

func (c *Cache[V]) addNew(key string, value V, expiresAt time.Time) {
	if elem, ok := c.entries[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[V]{key: key, value: value, expiresAt: expiresAt}
		return
	}
	c.entries[key] = c.lruList.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	if len(c.entries) <= c.maxEntries {
		c.metricsCollector.SetAmount(len(c.entries))
		return
	}
	// Only ready entries live in the LRU list, so an in-flight
	// computation can never be evicted here.
	if c.removeOldest() {
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.AddEvictions(1)
	}
}

func (c *Cache[V]) removeOldest() bool {
	elem := c.lruList.Back()
	if elem == nil {
		return false
	}
	c.lruList.Remove(elem)
	entry := elem.Value.(*cacheEntry[V])
	delete(c.entries, entry.key)
	return true
}

// RunPeriodicCleanup runs a cycle of periodic cleanup of expired entries.
// Entries without expiration time are not affected.
// It's supposed to be run in a separate goroutine.
func (c *Cache[V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, elem := range c.entries {
				entry := elem.Value.(*cacheEntry[V])
				if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
					c.lruList.Remove(elem)
					delete(c.entries, key)
					c.metricsCollector.IncExpirations()
				}
			}
			c.metricsCollector.SetAmount(len(c.entries))
			c.mu.Unlock()
		}
	}
}
