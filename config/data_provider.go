/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// DataProvider is an interface for providing configuration data
// from different sources (files, reader, environment variables).
type DataProvider interface {
	UseEnvVars(prefix string)

	Set(key string, value interface{})
	SetDefault(key string, value interface{})

	SetFromFile(path string, dataType DataType) error
	SetFromReader(reader io.Reader, dataType DataType) error

	IsSet(key string) bool

	Get(key string) interface{}
	GetBool(key string) (bool, error)
	GetInt(key string) (int, error)
	GetString(key string) (string, error)
	GetStringSlice(key string) ([]string, error)
	GetDuration(key string) (time.Duration, error)

	Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error
	UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error
}

// A DecoderConfigOption can be passed to Unmarshal/UnmarshalKey to configure
// mapstructure.DecoderConfig options.
type DecoderConfigOption func(*mapstructure.DecoderConfig)

// WrapKeyErrIfNeeded wraps error adding information about a key where this error occurs.
// If error is nil, it does nothing.
func WrapKeyErrIfNeeded(key string, err error) error {
	if err == nil {
		return nil
	}
	return WrapKeyErr(key, err)
}

// WrapKeyErr wraps error adding information about a key where this error occurs.
func WrapKeyErr(key string, err error) error {
	return fmt.Errorf("%s: %w", key, err)
}

// ViperProvider is DataProvider implementation that uses viper library under the hood.
type ViperProvider struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperProvider)(nil)

// NewViperProvider creates a new ViperProvider.
func NewViperProvider() *ViperProvider {
	return &ViperProvider{viper.New()}
}

// UseEnvVars enables the ability to use environment variables for configuration parameters.
// Prefix defines what environment variables will be looked.
// E.g., if your prefix is "tvk", the env registry will look for env
// variables that start with "TVK_".
func (vp *ViperProvider) UseEnvVars(prefix string) {
	vp.viper.AutomaticEnv()
	vp.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.viper.SetEnvPrefix(prefix)
}

// Set sets the value for the key in the override register.
func (vp *ViperProvider) Set(key string, value interface{}) {
	vp.viper.Set(key, value)
}

// SetDefault sets the default value for this key.
// Default only used when no value is provided by the user via config or ENV.
func (vp *ViperProvider) SetDefault(key string, value interface{}) {
	vp.viper.SetDefault(key, value)
}

// SetFromFile specifies that discovering and loading configuration data will be performed from file.
func (vp *ViperProvider) SetFromFile(path string, dataType DataType) error {
	vp.viper.SetConfigType(string(dataType))
	vp.viper.SetConfigFile(path)
	return vp.viper.ReadInConfig()
}

// SetFromReader specifies that discovering and loading configuration data will be performed from reader.
func (vp *ViperProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	vp.viper.SetConfigType(string(dataType))
	return vp.viper.ReadConfig(reader)
}

// IsSet checks to see if the key has been set in any of the data locations.
// IsSet is case-insensitive for a key.
func (vp *ViperProvider) IsSet(key string) bool {
	return vp.viper.IsSet(key)
}

// Get retrieves any value given the key to use.
func (vp *ViperProvider) Get(key string) interface{} {
	return vp.viper.Get(key)
}

// GetBool tries to retrieve the value associated with the key as a bool.
func (vp *ViperProvider) GetBool(key string) (res bool, err error) {
	res, err = cast.ToBoolE(vp.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetInt tries to retrieve the value associated with the key as an integer.
func (vp *ViperProvider) GetInt(key string) (res int, err error) {
	res, err = cast.ToIntE(vp.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetString tries to retrieve the value associated with the key as a string.
func (vp *ViperProvider) GetString(key string) (res string, err error) {
	res, err = cast.ToStringE(vp.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetStringSlice tries to retrieve the value associated with the key as a slice of strings.
func (vp *ViperProvider) GetStringSlice(key string) (res []string, err error) {
	val := vp.Get(key)
	if val == nil {
		return
	}
	res, err = cast.ToStringSliceE(val)
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// GetDuration tries to retrieve the value associated with the key as a duration.
func (vp *ViperProvider) GetDuration(key string) (res time.Duration, err error) {
	res, err = cast.ToDurationE(vp.Get(key))
	err = WrapKeyErrIfNeeded(key, err)
	return
}

// Unmarshal unmarshals the config into a struct.
func (vp *ViperProvider) Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error {
	return vp.viper.Unmarshal(rawVal, vp.decoderConfigOpts(opts)...)
}

// UnmarshalKey takes a single key and unmarshals it into a struct.
func (vp *ViperProvider) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return WrapKeyErrIfNeeded(key, vp.viper.UnmarshalKey(key, rawVal, vp.decoderConfigOpts(opts)...))
}

func (vp *ViperProvider) decoderConfigOpts(opts []DecoderConfigOption) []viper.DecoderConfigOption {
	viperOpts := make([]viper.DecoderConfigOption, 0, len(opts)+1)
	viperOpts = append(viperOpts, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	for _, opt := range opts {
		viperOpts = append(viperOpts, viper.DecoderConfigOption(opt))
	}
	return viperOpts
}

// KeyPrefixedDataProvider is a DataProvider decorator
// that adds a prefix to all keys it is asked about.
type KeyPrefixedDataProvider struct {
	delegate  DataProvider
	keyPrefix string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate, keyPrefix}
}

func (kp *KeyPrefixedDataProvider) makeKey(key string) string {
	if kp.keyPrefix == "" {
		return key
	}
	if key == "" {
		return kp.keyPrefix
	}
	return kp.keyPrefix + "." + key
}

// UseEnvVars enables the ability to use environment variables for configuration parameters.
func (kp *KeyPrefixedDataProvider) UseEnvVars(prefix string) {
	kp.delegate.UseEnvVars(prefix)
}

// Set sets the value for the prefixed key in the override register.
func (kp *KeyPrefixedDataProvider) Set(key string, value interface{}) {
	kp.delegate.Set(kp.makeKey(key), value)
}

// SetDefault sets the default value for the prefixed key.
func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.makeKey(key), value)
}

// SetFromFile specifies that discovering and loading configuration data will be performed from file.
func (kp *KeyPrefixedDataProvider) SetFromFile(path string, dataType DataType) error {
	return kp.delegate.SetFromFile(path, dataType)
}

// SetFromReader specifies that discovering and loading configuration data will be performed from reader.
func (kp *KeyPrefixedDataProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	return kp.delegate.SetFromReader(reader, dataType)
}

// IsSet checks to see if the prefixed key has been set in any of the data locations.
func (kp *KeyPrefixedDataProvider) IsSet(key string) bool {
	return kp.delegate.IsSet(kp.makeKey(key))
}

// Get retrieves any value given the prefixed key to use.
func (kp *KeyPrefixedDataProvider) Get(key string) interface{} {
	return kp.delegate.Get(kp.makeKey(key))
}

// GetBool tries to retrieve the value associated with the prefixed key as a bool.
func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.makeKey(key))
}

// GetInt tries to retrieve the value associated with the prefixed key as an integer.
func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.makeKey(key))
}

// GetString tries to retrieve the value associated with the prefixed key as a string.
func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.makeKey(key))
}

// GetStringSlice tries to retrieve the value associated with the prefixed key as a slice of strings.
func (kp *KeyPrefixedDataProvider) GetStringSlice(key string) ([]string, error) {
	return kp.delegate.GetStringSlice(kp.makeKey(key))
}

// GetDuration tries to retrieve the value associated with the prefixed key as a duration.
func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.makeKey(key))
}

// Unmarshal unmarshals the config under the prefix into a struct.
func (kp *KeyPrefixedDataProvider) Unmarshal(rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.keyPrefix, rawVal, opts...)
}

// UnmarshalKey takes a single prefixed key and unmarshals it into a struct.
func (kp *KeyPrefixedDataProvider) UnmarshalKey(key string, rawVal interface{}, opts ...DecoderConfigOption) error {
	return kp.delegate.UnmarshalKey(kp.makeKey(key), rawVal, opts...)
}
