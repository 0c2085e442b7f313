/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// windowState is the per-key admission log.
// All access to the fields goes through mu; the reaper takes the same mutex,
// so reaping cannot race with a concurrent Allow for the same key.
type windowState struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastSeen   time.Time
	removed    bool
}

// SlidingWindowLimiter implements exact sliding window rate limiting:
// it keeps the log of admission timestamps per key and admits a request only
// if fewer than maxRate.Count admissions happened within the last
// maxRate.Duration. Unlike counter-based approximations, no sequence of
// requests can exceed the limit in any window-sized interval.
//
// Idle keys are removed by RunPeriodicReaping; memory is bounded by the
// number of keys active within the last two window durations.
type SlidingWindowLimiter struct {
	maxRate Rate

	mu      sync.Mutex
	windows map[string]*windowState
}

// NewSlidingWindowLimiter creates a new exact sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate) (*SlidingWindowLimiter, error) {
	if maxRate.Count <= 0 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %q", maxRate)
	}
	return &SlidingWindowLimiter{
		maxRate: maxRate,
		windows: make(map[string]*windowState),
	}, nil
}

// Allow checks if one more request under the given key may be admitted now.
// On denial, retryAfter is the time until the oldest admission in the window
// slides out, i.e. the earliest moment a retry has a chance to be admitted.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	for {
		l.mu.Lock()
		w, ok := l.windows[key]
		if !ok {
			w = &windowState{}
			l.windows[key] = w
		}
		l.mu.Unlock()

		w.mu.Lock()
		if w.removed {
			// Lost the race with the reaper, the state is an orphan.
			w.mu.Unlock()
			continue
		}
		allow, retryAfter = l.admit(w, time.Now())
		w.mu.Unlock()
		return allow, retryAfter, nil
	}
}

// admit is called with w.mu held.
func (l *SlidingWindowLimiter) admit(w *windowState, now time.Time) (bool, time.Duration) {
	w.lastSeen = now

	// Drop timestamps that slid out of the window.
	cutoff := now.Add(-l.maxRate.Duration)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}

	if len(w.timestamps) < l.maxRate.Count {
		w.timestamps = append(w.timestamps, now)
		return true, 0
	}
	return false, l.maxRate.Duration - now.Sub(w.timestamps[0])
}

// KeysCount returns the number of tracked keys.
func (l *SlidingWindowLimiter) KeysCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunPeriodicReaping removes keys that have been idle for more than two
// window durations. It's supposed to be run in a separate goroutine.
func (l *SlidingWindowLimiter) RunPeriodicReaping(ctx context.Context, reapInterval time.Duration) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.reap(time.Now())
		}
	}
}

func (l *SlidingWindowLimiter) reap(now time.Time) {
	idleCutoff := now.Add(-2 * l.maxRate.Duration)

	l.mu.Lock()
	keys := make([]string, 0, len(l.windows))
	for key := range l.windows {
		keys = append(keys, key)
	}
	l.mu.Unlock()

	for _, key := range keys {
		l.mu.Lock()
		w, ok := l.windows[key]
		if !ok {
			l.mu.Unlock()
			continue
		}
		w.mu.Lock()
		if w.lastSeen.Before(idleCutoff) {
			w.removed = true
			delete(l.windows, key)
		}
		w.mu.Unlock()
		l.mu.Unlock()
	}
}
