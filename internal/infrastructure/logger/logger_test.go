package logger

import (
	"testing"

	"pointledger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		want        zapcore.Level
	}{
		{"production default", "", false, zapcore.InfoLevel},
		{"development default", "", true, zapcore.DebugLevel},
		{"explicit", "warn", false, zapcore.WarnLevel},
		{"upper case", "ERROR", true, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.level, tt.development)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose", false)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = New(config.LogConfig{Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
