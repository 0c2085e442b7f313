/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vasayxtx/go-glob"
)

// Alg is a rate limiting algorithm name.
type Alg string

// Supported rate limiting algorithms.
const (
	AlgSlidingWindow        Alg = "sliding_window"
	AlgSlidingWindowCounter Alg = "sliding_window_counter"
	AlgLeakyBucket          Alg = "leaky_bucket"
	AlgTokenBucket          Alg = "token_bucket"
)

// TierRule describes one tier: a named rate limit applied to the routes
// matching its patterns. Patterns are either exact paths or globs
// ("*" and "?" wildcards).
type TierRule struct {
	// Name identifies the tier in metrics and decisions.
	Name string

	// Rate is the tier's limit. Ignored when NoLimit is true.
	Rate Rate

	// Alg selects the limiting algorithm. Empty means AlgSlidingWindow.
	Alg Alg

	// Burst is the burst size for AlgLeakyBucket and AlgTokenBucket.
	Burst int

	// MaxKeys bounds the number of tracked identities for the counter-based
	// algorithms. Zero means the algorithm's default.
	MaxKeys int

	// NoLimit makes the tier admit everything. Useful to carve exceptions
	// out of a broader pattern.
	NoLimit bool

	// RoutePatterns is the list of route patterns the tier applies to.
	RoutePatterns []string
}

type tier struct {
	name    string
	noLimit bool
	limiter Limiter
}

type tierRoute struct {
	pattern string
	exact   bool
	order   int
	match   func(s string) bool
	tier    *tier
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration

	// Tier is the name of the matched tier. Empty if no tier matched
	// (such requests are admitted).
	Tier string
}

// Admitter routes (identity, route) pairs to tiers and admits them against
// the matched tier's limiter. Each tier keeps independent per-identity state,
// so the same identity may be admitted on one tier and denied on another.
type Admitter struct {
	routes           []*tierRoute
	tiers            map[string]*tier
	metricsCollector MetricsCollector
}

// NewAdmitter creates a new Admitter from the provided tier rules.
// Metrics collector may be nil, in this case metrics are disabled.
func NewAdmitter(rules []TierRule, metricsCollector MetricsCollector) (*Admitter, error) {
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	a := &Admitter{
		tiers:            make(map[string]*tier),
		metricsCollector: metricsCollector,
	}
	for i := range rules {
		rule := &rules[i]
		if rule.Name == "" {
			return nil, fmt.Errorf("tier #%d: name is required", i)
		}
		if _, ok := a.tiers[rule.Name]; ok {
			return nil, fmt.Errorf("tier %q is defined more than once", rule.Name)
		}
		lim, err := makeLimiter(rule)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", rule.Name, err)
		}
		t := &tier{name: rule.Name, noLimit: rule.NoLimit, limiter: lim}
		a.tiers[rule.Name] = t

		for _, pattern := range rule.RoutePatterns {
			pattern := pattern
			if pattern == "" {
				return nil, fmt.Errorf("tier %q: empty route pattern", rule.Name)
			}
			route := &tierRoute{pattern: pattern, order: len(a.routes), tier: t}
			if strings.ContainsAny(pattern, "*?") {
				route.match = glob.Compile(pattern)
			} else {
				route.exact = true
				route.match = func(s string) bool { return s == pattern }
			}
			a.routes = append(a.routes, route)
		}
	}

	// Exact patterns win over globs, longer (more specific) globs win over
	// shorter ones, declaration order breaks the remaining ties.
	sort.SliceStable(a.routes, func(i, j int) bool {
		ri, rj := a.routes[i], a.routes[j]
		if ri.exact != rj.exact {
			return ri.exact
		}
		if len(ri.pattern) != len(rj.pattern) {
			return len(ri.pattern) > len(rj.pattern)
		}
		return ri.order < rj.order
	})
	return a, nil
}

func makeLimiter(rule *TierRule) (Limiter, error) {
	if rule.NoLimit {
		return nil, nil
	}
	if rule.Rate.Count <= 0 || rule.Rate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %q", rule.Rate)
	}
	// Tiers always limit per identity, so a per-key store is required even
	// when the rule doesn't bound it explicitly.
	maxKeys := rule.MaxKeys
	if maxKeys == 0 {
		maxKeys = DefaultMaxKeys
	}
	switch rule.Alg {
	case AlgSlidingWindow, "":
		return NewSlidingWindowLimiter(rule.Rate)
	case AlgSlidingWindowCounter:
		return NewSlidingWindowCounterLimiter(rule.Rate, maxKeys)
	case AlgLeakyBucket:
		return NewLeakyBucketLimiter(rule.Rate, rule.Burst, maxKeys)
	case AlgTokenBucket:
		return NewTokenBucketLimiter(rule.Rate, rule.Burst, maxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limit alg %q", rule.Alg)
	}
}

// MatchTier returns the name of the most specific tier whose pattern matches
// the route path.
func (a *Admitter) MatchTier(routePath string) (tierName string, ok bool) {
	for _, route := range a.routes {
		if route.match(routePath) {
			return route.tier.name, true
		}
	}
	return "", false
}

// Admit matches the route path to a tier and checks the identity against the
// tier's limiter. A route that matches no tier is admitted as-is with an
// empty tier name in the decision.
func (a *Admitter) Admit(ctx context.Context, identity, routePath string) (Decision, error) {
	for _, route := range a.routes {
		if route.match(routePath) {
			return a.admitTier(ctx, route.tier, identity)
		}
	}
	return Decision{Allowed: true}, nil
}

// AdmitTier checks the identity against the named tier's limiter directly,
// bypassing route matching. Unknown tier name is an error.
func (a *Admitter) AdmitTier(ctx context.Context, identity, tierName string) (Decision, error) {
	t, ok := a.tiers[tierName]
	if !ok {
		return Decision{}, fmt.Errorf("unknown tier %q", tierName)
	}
	return a.admitTier(ctx, t, identity)
}

func (a *Admitter) admitTier(ctx context.Context, t *tier, identity string) (Decision, error) {
	if t.noLimit {
		a.metricsCollector.IncAllowed(t.name)
		return Decision{Allowed: true, Tier: t.name}, nil
	}
	allow, retryAfter, err := t.limiter.Allow(ctx, identity)
	if err != nil {
		return Decision{}, fmt.Errorf("tier %q: %w", t.name, err)
	}
	if allow {
		a.metricsCollector.IncAllowed(t.name)
	} else {
		a.metricsCollector.IncDenied(t.name)
	}
	return Decision{Allowed: allow, RetryAfter: retryAfter, Tier: t.name}, nil
}
