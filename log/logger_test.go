/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, closeFn := NewLogger(NewDefaultConfig())
	require.NotNil(t, logger)
	logger.Info("hello", String("who", "world"))
	closeFn()
}

func TestDisabledLoggerDoesNotPanic(t *testing.T) {
	logger := NewDisabledLogger()
	logger.Debug("debug", Int("n", 1))
	logger.Info("info")
	logger.Warnf("warn %d", 2)
	logger.Error("error", Error(nil))
	logger.With(String("k", "v")).Info("with fields")
	logger.AtLevel(LevelInfo, func(logFunc LogFunc) {
		logFunc("at level")
	})
}
