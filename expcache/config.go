/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package expcache

import (
	"fmt"
	"time"

	"github.com/teravolt/go-corekit/config"
)

// Default configuration values.
const (
	DefaultCapacity        = 1000
	DefaultCleanupInterval = time.Minute
)

const (
	cfgKeyCapacity        = "capacity"
	cfgKeyDefaultTTL      = "defaultTTL"
	cfgKeyCleanupInterval = "cleanupInterval"
	cfgKeyProducerTimeout = "producerTimeout"
)

// Config represents a set of configuration parameters for one cache instance.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Capacity is the maximum number of ready entries; exceeding it evicts the LRU entry.
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`

	// DefaultTTL is the expiration time for entries added without an explicit TTL.
	DefaultTTL config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`

	// CleanupInterval is the period of the background sweep of expired entries.
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`

	// ProducerTimeout bounds producer execution time. Zero means no timeout.
	ProducerTimeout config.TimeDuration `mapstructure:"producerTimeout" yaml:"producerTimeout" json:"producerTimeout"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config with the given key prefix.
// Each logical cache is supposed to live under its own prefix (e.g. "caches.tickets").
func NewConfig(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(keyPrefix string) *Config {
	return &Config{
		keyPrefix:       keyPrefix,
		Capacity:        DefaultCapacity,
		CleanupInterval: config.TimeDuration(DefaultCleanupInterval),
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
	dp.SetDefault(cfgKeyCapacity, DefaultCapacity)
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
}

// Set sets cache configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Capacity, err = dp.GetInt(cfgKeyCapacity); err != nil {
		return err
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyDefaultTTL); err != nil {
		return err
	}
	c.DefaultTTL = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	c.CleanupInterval = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyProducerTimeout); err != nil {
		return err
	}
	c.ProducerTimeout = config.TimeDuration(dur)

	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity should be > 0, got %d", c.Capacity)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("defaultTTL should be >= 0, got %s", c.DefaultTTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanupInterval should be > 0, got %s", c.CleanupInterval)
	}
	return nil
}

// NewFromConfig creates a new Cache from the passed configuration.
func NewFromConfig[V any](cfg *Config, metricsCollector MetricsCollector) (*Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithOpts[V](cfg.Capacity, metricsCollector, Options{
		DefaultTTL:      time.Duration(cfg.DefaultTTL),
		ProducerTimeout: time.Duration(cfg.ProducerTimeout),
	})
}
