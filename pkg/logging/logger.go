package logging

import (
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Mode is "development" or "production".
	Mode string
	// Level is "debug", "info", "warn" or "error".
	Level string
	// File, if set, receives a copy of every log line.
	File string
}

// New builds the session logger. It returns the logger instead of storing it
// anywhere; callers pass it to the components that need it.
func New(cfg Config) (*zap.Logger, error) {
	var config zap.Config

	// 1. Pick the base config by mode.
	if cfg.Mode == "production" {
		// JSON for machines, warnings and above.
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	} else {
		// Console for people, debug and above.
		config = zap.NewDevelopmentConfig()
	}

	// 2. An explicit level overrides the mode default.
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(cfg.Level)); err == nil && cfg.Level != "" {
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	}

	// 3. Optional log file next to stderr.
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
			return nil, cerr.Wrapf(err, "create log dir for %s", cfg.File)
		}
		config.OutputPaths = append(config.OutputPaths, cfg.File)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, cerr.Wrap(err, "build logger")
	}
	return logger, nil
}

// Close flushes buffered log entries. Sync errors on terminals are expected and ignored.
func Close(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
