/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type serverConfig struct {
	Addr    string       `mapstructure:"addr"`
	Timeout TimeDuration `mapstructure:"timeout"`
	MaxSize ByteSize     `mapstructure:"maxSize"`

	keyPrefix string
}

func (c *serverConfig) KeyPrefix() string {
	return c.keyPrefix
}

func (c *serverConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("addr", ":8080")
	dp.SetDefault("timeout", "30s")
}

func (c *serverConfig) Set(dp DataProvider) error {
	return dp.Unmarshal(c)
}

func TestLoaderLoadFromReader(t *testing.T) {
	cfgData := bytes.NewBufferString(`
server:
  addr: ":9000"
  timeout: 1m
  maxSize: 4MB
`)
	cfg := &serverConfig{keyPrefix: "server"}
	err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, TimeDuration(time.Minute), cfg.Timeout)
	require.Equal(t, ByteSize(4*1024*1024), cfg.MaxSize)
}

func TestLoaderAppliesProviderDefaults(t *testing.T) {
	cfgData := bytes.NewBufferString(`
server:
  maxSize: 1KB
`)
	cfg := &serverConfig{keyPrefix: "server"}
	err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, TimeDuration(30*time.Second), cfg.Timeout)
	require.Equal(t, ByteSize(1024), cfg.MaxSize)
}

func TestLoaderLoadsMultipleConfigs(t *testing.T) {
	cfgData := bytes.NewBufferString(`
server:
  addr: ":9000"
worker:
  addr: ":9001"
`)
	serverCfg := &serverConfig{keyPrefix: "server"}
	workerCfg := &serverConfig{keyPrefix: "worker"}
	err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, serverCfg, workerCfg)
	require.NoError(t, err)

	require.Equal(t, ":9000", serverCfg.Addr)
	require.Equal(t, ":9001", workerCfg.Addr)
}

func TestByteSizeUnmarshal(t *testing.T) {
	tests := []struct {
		text string
		want ByteSize
	}{
		{text: "512", want: ByteSize(512)},
		{text: "1KB", want: ByteSize(1024)},
		{text: "2MB", want: ByteSize(2 * 1024 * 1024)},
		{text: "1GB", want: ByteSize(1024 * 1024 * 1024)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var fromYAML struct {
				Size ByteSize `yaml:"size"`
			}
			require.NoError(t, yaml.Unmarshal([]byte("size: "+tt.text), &fromYAML))
			require.Equal(t, tt.want, fromYAML.Size)
		})
	}

	var fromJSON struct {
		Size ByteSize `json:"size"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"size": "3MB"}`), &fromJSON))
	require.Equal(t, ByteSize(3*1024*1024), fromJSON.Size)

	var bs ByteSize
	require.Error(t, bs.UnmarshalText([]byte("many bytes")))
}

func TestTimeDurationUnmarshal(t *testing.T) {
	var fromYAML struct {
		Timeout TimeDuration `yaml:"timeout"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 1h30m"), &fromYAML))
	require.Equal(t, TimeDuration(90*time.Minute), fromYAML.Timeout)

	var fromJSON struct {
		Timeout TimeDuration `json:"timeout"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"timeout": "15s"}`), &fromJSON))
	require.Equal(t, TimeDuration(15*time.Second), fromJSON.Timeout)

	var td TimeDuration
	require.Error(t, td.UnmarshalText([]byte("soon")))
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	vp := NewViperProvider()
	require.NoError(t, vp.SetFromReader(bytes.NewBufferString(`
outer:
  inner:
    value: 42
`), DataTypeYAML))

	dp := NewKeyPrefixedDataProvider(vp, "outer.inner")
	value, err := dp.GetInt("value")
	require.NoError(t, err)
	require.Equal(t, 42, value)

	_, err = dp.GetInt("missing.value")
	require.NoError(t, err, "missing int key defaults to zero")
	require.False(t, dp.IsSet("missing.value"))
}
