// Package logging builds the zap logger used by the migration tools.
package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LevelDebug sets the log level to debug
	LevelDebug = "debug"

	// LevelInfo sets the log level to info
	LevelInfo = "info"

	// LevelNone disables logging
	LevelNone = "none"
)

// New returns a console zap logger writing to stderr at the given level.
func New(level string) (*zap.Logger, error) {
	if level == LevelNone {
		return zap.NewNop(), nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return cfg.Build()
}

// WithRunID tags every entry of logger with a fresh run id so that the log
// lines of one invocation can be told apart.
func WithRunID(logger *zap.Logger) (*zap.Logger, string) {
	id := uuid.New().String()
	return logger.With(zap.String("run", id)), id
}
