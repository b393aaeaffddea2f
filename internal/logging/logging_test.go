package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable zap.AtomicLevel
	}{
		{"debug level", "debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn level", "warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"default info", "", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, "prod")
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tt.enable.Level()))
			if tt.enable.Level() > zap.DebugLevel {
				require.False(t, logger.Core().Enabled(tt.enable.Level()-1))
			}
		})
	}
}
