/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"strings"

	"github.com/teravolt/go-corekit/config"
)

// Default configuration values.
const (
	DefaultMaxKeys = 10000
)

const cfgKeyTiers = "tiers"

// TierConfig represents configuration parameters for one tier.
type TierConfig struct {
	// Name identifies the tier in metrics and admission decisions.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Rate is the tier's limit in the "N/(s|m|h)" form, for example "100/m".
	Rate Rate `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Alg selects the limiting algorithm
	// (sliding_window, sliding_window_counter, leaky_bucket, token_bucket).
	// Empty means sliding_window.
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Burst is the burst size for the leaky_bucket and token_bucket algorithms.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// MaxKeys bounds the number of tracked identities where the algorithm needs it.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	// NoLimit makes the tier admit everything.
	NoLimit bool `mapstructure:"noLimit" yaml:"noLimit" json:"noLimit"`

	// RoutePatterns lists exact or glob route patterns the tier applies to.
	RoutePatterns []string `mapstructure:"routePatterns" yaml:"routePatterns" json:"routePatterns"`
}

// Config represents a set of configuration parameters for rate limiting tiers.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Tiers is an ordered list of tiers. Order matters: it breaks ties
	// between equally specific route patterns.
	Tiers []TierConfig `mapstructure:"tiers" yaml:"tiers" json:"tiers"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the New* functions.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: "rateLimit"}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return "rateLimit"
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets rate limiting configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.UnmarshalKey(cfgKeyTiers, &c.Tiers); err != nil {
		return config.WrapKeyErr(cfgKeyTiers, err)
	}
	if err := c.Validate(); err != nil {
		return config.WrapKeyErr(cfgKeyTiers, err)
	}
	return nil
}

// Validate validates configuration.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Tiers))
	for i := range c.Tiers {
		tc := &c.Tiers[i]
		if tc.Name == "" {
			return fmt.Errorf("tier #%d: name is required", i)
		}
		if _, ok := seen[tc.Name]; ok {
			return fmt.Errorf("tier %q is defined more than once", tc.Name)
		}
		seen[tc.Name] = struct{}{}
		if !tc.NoLimit && (tc.Rate.Count <= 0 || tc.Rate.Duration <= 0) {
			return fmt.Errorf("tier %q: rate must be positive, got %q", tc.Name, tc.Rate)
		}
		switch Alg(tc.Alg) {
		case "", AlgSlidingWindow, AlgSlidingWindowCounter, AlgLeakyBucket, AlgTokenBucket:
		default:
			return fmt.Errorf("tier %q: unknown alg %q", tc.Name, tc.Alg)
		}
		if len(tc.RoutePatterns) == 0 {
			return fmt.Errorf("tier %q: at least one route pattern is required", tc.Name)
		}
		for _, pattern := range tc.RoutePatterns {
			if strings.TrimSpace(pattern) == "" {
				return fmt.Errorf("tier %q: empty route pattern", tc.Name)
			}
		}
	}
	return nil
}

// TierRules converts the configuration into tier rules for NewAdmitter.
func (c *Config) TierRules() []TierRule {
	rules := make([]TierRule, 0, len(c.Tiers))
	for i := range c.Tiers {
		tc := &c.Tiers[i]
		rules = append(rules, TierRule{
			Name:          tc.Name,
			Rate:          tc.Rate,
			Alg:           Alg(tc.Alg),
			Burst:         tc.Burst,
			MaxKeys:       tc.MaxKeys,
			NoLimit:       tc.NoLimit,
			RoutePatterns: tc.RoutePatterns,
		})
	}
	return rules
}

// NewAdmitterFromConfig creates a new Admitter from the passed configuration.
func NewAdmitterFromConfig(cfg *Config, metricsCollector MetricsCollector) (*Admitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewAdmitter(cfg.TierRules(), metricsCollector)
}
