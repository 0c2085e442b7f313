/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teravolt/go-corekit/config"
)

func loadConfigFromYAML(t *testing.T, yamlData string) (*Config, error) {
	t.Helper()
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := loadConfigFromYAML(t, "log: {}\n")
	require.NoError(t, err)
	require.Equal(t, LevelInfo, cfg.Level)
	require.Equal(t, FormatJSON, cfg.Format)
	require.Equal(t, OutputStdout, cfg.Output)
}

func TestConfigLoad(t *testing.T) {
	cfg, err := loadConfigFromYAML(t, `
log:
  level: warn
  format: text
  output: stderr
  nocolor: true
`)
	require.NoError(t, err)
	require.Equal(t, LevelWarn, cfg.Level)
	require.Equal(t, FormatText, cfg.Format)
	require.Equal(t, OutputStderr, cfg.Output)
	require.True(t, cfg.NoColor)
}

func TestConfigFileOutput(t *testing.T) {
	cfg, err := loadConfigFromYAML(t, `
log:
  output: file
  file:
    path: /var/log/svc.log
    rotation:
      compress: true
      maxSize: 100MB
      maxBackups: 5
      maxAgeDays: 7
`)
	require.NoError(t, err)
	require.Equal(t, OutputFile, cfg.Output)
	require.Equal(t, "/var/log/svc.log", cfg.File.Path)
	require.True(t, cfg.File.Rotation.Compress)
	require.Equal(t, config.ByteSize(100*1024*1024), cfg.File.Rotation.MaxSize)
	require.Equal(t, 5, cfg.File.Rotation.MaxBackups)
	require.Equal(t, 7, cfg.File.Rotation.MaxAgeDays)
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		yamlData string
		errMsg   string
	}{
		{
			name:     "unknown level",
			yamlData: "log:\n  level: verbose\n",
			errMsg:   `unknown value "verbose"`,
		},
		{
			name:     "unknown format",
			yamlData: "log:\n  format: xml\n",
			errMsg:   `unknown value "xml"`,
		},
		{
			name:     "unknown output",
			yamlData: "log:\n  output: syslog\n",
			errMsg:   `unknown value "syslog"`,
		},
		{
			name:     "file output without path",
			yamlData: "log:\n  output: file\n",
			errMsg:   "cannot be empty",
		},
		{
			name:     "rotation max size too small",
			yamlData: "log:\n  output: file\n  file:\n    path: /tmp/x.log\n    rotation:\n      maxSize: 1KB\n",
			errMsg:   "should be >=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfigFromYAML(t, tt.yamlData)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigCustomKeyPrefix(t *testing.T) {
	cfg := NewConfig(WithKeyPrefix("service.log"))
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(`
service:
  log:
    level: debug
`), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, cfg.Level)
}
