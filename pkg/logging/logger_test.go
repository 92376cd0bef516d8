package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zapcore.Level
	}{
		{"development default", Config{Mode: "development"}, zapcore.DebugLevel},
		{"production default", Config{Mode: "production"}, zapcore.WarnLevel},
		{"explicit level wins", Config{Mode: "production", Level: "info"}, zapcore.InfoLevel},
		{"bad level ignored", Config{Mode: "development", Level: "loud"}, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cleanup.log")
	logger, err := New(Config{Mode: "production", Level: "info", File: path})
	require.NoError(t, err)

	logger.Info("Starting Concurrent Advanced Cleanup...")
	Close(logger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Starting Concurrent Advanced Cleanup...")
}
