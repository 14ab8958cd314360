package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"IXScan/internal/config"
)

// New builds a zap logger from the log section of the config. Development mode logs
// human-readable console lines, otherwise JSON is written to stderr.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	return zc.Build()
}

// Setup builds the logger and installs it as the global logger used through zap.S().
// The returned function flushes and restores the previous globals.
func Setup(cfg config.LogConfig) (func(), error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	undo := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		undo()
	}, nil
}
