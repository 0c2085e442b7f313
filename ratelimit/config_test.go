/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teravolt/go-corekit/config"
)

func TestConfigLoad(t *testing.T) {
	cfgData := bytes.NewBufferString(`
rateLimit:
  tiers:
    - name: upload
      rate: 5/m
      routePatterns:
        - /api/v1/upload
    - name: api
      rate: 100/m
      alg: token_bucket
      burst: 20
      routePatterns:
        - "/api/*"
    - name: health
      noLimit: true
      routePatterns:
        - /healthz
`)
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Len(t, cfg.Tiers, 3)
	require.Equal(t, "upload", cfg.Tiers[0].Name)
	require.Equal(t, Rate{Count: 5, Duration: time.Minute}, cfg.Tiers[0].Rate)
	require.Equal(t, "token_bucket", cfg.Tiers[1].Alg)
	require.Equal(t, 20, cfg.Tiers[1].Burst)
	require.True(t, cfg.Tiers[2].NoLimit)

	a, err := NewAdmitterFromConfig(cfg, nil)
	require.NoError(t, err)
	d, err := a.Admit(context.Background(), "alice", "/api/v1/upload")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, "upload", d.Tier)
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		errMsg  string
	}{
		{
			name: "bad rate format",
			cfgData: `
rateLimit:
  tiers:
    - name: api
      rate: 100 per minute
      routePatterns: ["*"]
`,
			errMsg: "incorrect format for rate",
		},
		{
			name: "missing route patterns",
			cfgData: `
rateLimit:
  tiers:
    - name: api
      rate: 100/m
`,
			errMsg: "at least one route pattern is required",
		},
		{
			name: "unknown alg",
			cfgData: `
rateLimit:
  tiers:
    - name: api
      rate: 100/m
      alg: fixed_window
      routePatterns: ["*"]
`,
			errMsg: "unknown alg",
		},
		{
			name: "duplicate tier",
			cfgData: `
rateLimit:
  tiers:
    - name: api
      rate: 100/m
      routePatterns: ["*"]
    - name: api
      rate: 10/m
      routePatterns: ["/x"]
`,
			errMsg: "defined more than once",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.NewDefaultLoader("").LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, NewConfig())
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
