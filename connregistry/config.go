/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package connregistry

import (
	"fmt"
	"time"

	"github.com/teravolt/go-corekit/config"
	"github.com/teravolt/go-corekit/log"
)

// Default configuration values.
const (
	DefaultQueueDepth       = 64
	DefaultHeartbeatTimeout = 30 * time.Second
	DefaultSweepInterval    = 5 * time.Second
)

const (
	cfgKeyQueueDepth       = "queueDepth"
	cfgKeyMaxConns         = "maxConns"
	cfgKeyHeartbeatTimeout = "heartbeatTimeout"
	cfgKeySweepInterval    = "sweepInterval"
)

// Config represents a set of configuration parameters for the connection registry.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// QueueDepth is the per-connection queue capacity.
	QueueDepth int `mapstructure:"queueDepth" yaml:"queueDepth" json:"queueDepth"`

	// MaxConns limits the number of attached connections. Zero means no limit.
	MaxConns int `mapstructure:"maxConns" yaml:"maxConns" json:"maxConns"`

	// HeartbeatTimeout is the silence period after which a connection is swept.
	HeartbeatTimeout config.TimeDuration `mapstructure:"heartbeatTimeout" yaml:"heartbeatTimeout" json:"heartbeatTimeout"`

	// SweepInterval is the period of the background heartbeat sweep.
	SweepInterval config.TimeDuration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config with the given key prefix.
func NewConfig(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(keyPrefix string) *Config {
	return &Config{
		keyPrefix:        keyPrefix,
		QueueDepth:       DefaultQueueDepth,
		HeartbeatTimeout: config.TimeDuration(DefaultHeartbeatTimeout),
		SweepInterval:    config.TimeDuration(DefaultSweepInterval),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyQueueDepth, DefaultQueueDepth)
	dp.SetDefault(cfgKeyHeartbeatTimeout, DefaultHeartbeatTimeout.String())
	dp.SetDefault(cfgKeySweepInterval, DefaultSweepInterval.String())
}

// Set sets connection registry configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.QueueDepth, err = dp.GetInt(cfgKeyQueueDepth); err != nil {
		return err
	}
	if c.MaxConns, err = dp.GetInt(cfgKeyMaxConns); err != nil {
		return err
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyHeartbeatTimeout); err != nil {
		return err
	}
	c.HeartbeatTimeout = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeySweepInterval); err != nil {
		return err
	}
	c.SweepInterval = config.TimeDuration(dur)

	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queueDepth should be > 0, got %d", c.QueueDepth)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("maxConns should be >= 0, got %d", c.MaxConns)
	}
	if c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeatTimeout should be > 0, got %s", c.HeartbeatTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweepInterval should be > 0, got %s", c.SweepInterval)
	}
	return nil
}

// NewRegistryFromConfig creates a new Registry from the passed configuration.
func NewRegistryFromConfig[M any](
	cfg *Config, logger log.FieldLogger, metricsCollector MetricsCollector,
) (*Registry[M], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewRegistry[M](logger, metricsCollector, Options{
		QueueDepth:       cfg.QueueDepth,
		MaxConns:         cfg.MaxConns,
		HeartbeatTimeout: time.Duration(cfg.HeartbeatTimeout),
	}), nil
}
