/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAdmitterTierMatching(t *testing.T) {
	a, err := NewAdmitter([]TierRule{
		{Name: "catchall", Rate: Rate{Count: 100, Duration: time.Minute}, RoutePatterns: []string{"*"}},
		{Name: "api", Rate: Rate{Count: 50, Duration: time.Minute}, RoutePatterns: []string{"/api/*"}},
		{Name: "upload", Rate: Rate{Count: 5, Duration: time.Minute}, RoutePatterns: []string{"/api/v1/upload"}},
		{Name: "health", NoLimit: true, RoutePatterns: []string{"/healthz"}},
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		routePath string
		wantTier  string
	}{
		{routePath: "/api/v1/upload", wantTier: "upload"}, // exact beats glob
		{routePath: "/api/v1/tickets", wantTier: "api"},   // longer glob beats "*"
		{routePath: "/healthz", wantTier: "health"},
		{routePath: "/metrics", wantTier: "catchall"},
	}
	for _, tt := range tests {
		t.Run(tt.routePath, func(t *testing.T) {
			tierName, ok := a.MatchTier(tt.routePath)
			require.True(t, ok)
			require.Equal(t, tt.wantTier, tierName)
		})
	}
}

func TestAdmitterAdmit(t *testing.T) {
	a, err := NewAdmitter([]TierRule{
		{Name: "tight", Rate: Rate{Count: 2, Duration: time.Minute}, RoutePatterns: []string{"/api/*"}},
		{Name: "open", NoLimit: true, RoutePatterns: []string{"/healthz"}},
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, admitErr := a.Admit(ctx, "alice", "/api/tickets")
		require.NoError(t, admitErr)
		require.True(t, d.Allowed)
		require.Equal(t, "tight", d.Tier)
	}
	d, err := a.Admit(ctx, "alice", "/api/tickets")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))
	require.Equal(t, "tight", d.Tier)

	// Another identity has its own budget on the same tier.
	d, err = a.Admit(ctx, "bob", "/api/tickets")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// NoLimit tier admits everything.
	for i := 0; i < 10; i++ {
		d, err = a.Admit(ctx, "alice", "/healthz")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, "open", d.Tier)
	}

	// A route matching no tier is admitted and not attributed to any tier.
	d, err = a.Admit(ctx, "alice", "/unmatched")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, "", d.Tier)
}

func TestAdmitterAdmitTier(t *testing.T) {
	a, err := NewAdmitter([]TierRule{
		{Name: "tight", Rate: Rate{Count: 1, Duration: time.Minute}, RoutePatterns: []string{"/api/*"}},
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	d, err := a.AdmitTier(ctx, "alice", "tight")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = a.AdmitTier(ctx, "alice", "tight")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	_, err = a.AdmitTier(ctx, "alice", "nope")
	require.EqualError(t, err, `unknown tier "nope"`)
}

func TestAdmitterMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	a, err := NewAdmitter([]TierRule{
		{Name: "tight", Rate: Rate{Count: 1, Duration: time.Minute}, RoutePatterns: []string{"*"}},
	}, pm)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, admitErr := a.Admit(ctx, "alice", "/anything")
		require.NoError(t, admitErr)
	}

	allowed := pm.AllowedTotal.With(prometheus.Labels{"tier": "tight"})
	denied := pm.DeniedTotal.With(prometheus.Labels{"tier": "tight"})
	require.Equal(t, float64(1), promtestutil.ToFloat64(allowed))
	require.Equal(t, float64(2), promtestutil.ToFloat64(denied))
}

func TestNewAdmitterValidation(t *testing.T) {
	_, err := NewAdmitter([]TierRule{
		{Name: "a", Rate: Rate{Count: 1, Duration: time.Second}, RoutePatterns: []string{"*"}},
		{Name: "a", Rate: Rate{Count: 1, Duration: time.Second}, RoutePatterns: []string{"/x"}},
	}, nil)
	require.EqualError(t, err, `tier "a" is defined more than once`)

	_, err = NewAdmitter([]TierRule{
		{Name: "bad-alg", Rate: Rate{Count: 1, Duration: time.Second}, Alg: "fixed_window", RoutePatterns: []string{"*"}},
	}, nil)
	require.Error(t, err)

	_, err = NewAdmitter([]TierRule{
		{Name: "bad-rate", RoutePatterns: []string{"*"}},
	}, nil)
	require.Error(t, err)

	_, err = NewAdmitter([]TierRule{
		{Name: "", Rate: Rate{Count: 1, Duration: time.Second}, RoutePatterns: []string{"*"}},
	}, nil)
	require.Error(t, err)
}

func TestLimiterAlgorithms(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		newLimiter func() (Limiter, error)
	}{
		{
			name: "sliding window counter",
			newLimiter: func() (Limiter, error) {
				return NewSlidingWindowCounterLimiter(Rate{Count: 2, Duration: time.Minute}, 100)
			},
		},
		{
			name: "leaky bucket",
			newLimiter: func() (Limiter, error) {
				return NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 1, 100)
			},
		},
		{
			name: "token bucket",
			newLimiter: func() (Limiter, error) {
				return NewTokenBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 2, 100)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.newLimiter()
			require.NoError(t, err)

			allow, _, err := l.Allow(ctx, "alice")
			require.NoError(t, err)
			require.True(t, allow, "first request should pass")

			denied := false
			var retryAfter time.Duration
			for i := 0; i < 3; i++ {
				var a bool
				a, retryAfter, err = l.Allow(ctx, "alice")
				require.NoError(t, err)
				if !a {
					denied = true
					break
				}
			}
			require.True(t, denied, "limit should kick in within burst+1 requests")
			require.Greater(t, retryAfter, time.Duration(0))

			allow, _, err = l.Allow(ctx, "bob")
			require.NoError(t, err)
			require.True(t, allow, "keys must not share the budget")
		})
	}
}
