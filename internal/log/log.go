// Package log holds the process-wide zap logger.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// Setup replaces the global logger. Debug selects a human-readable development
// encoder; otherwise a JSON production logger is built at the given level.
func Setup(level string, debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		lvl, perr := zapcore.ParseLevel(strings.TrimSpace(level))
		if perr != nil {
			return fmt.Errorf("parse log level %q: %w", level, perr)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		// stdout belongs to command output
		cfg.OutputPaths = []string{"stderr"}
		l, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = l
	return nil
}

// Logger returns the global logger.
func Logger() *zap.Logger { return logger }

// SetLogger sets the global logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { logger.Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { logger.Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// With returns a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger { return logger.With(fields...) }

// Sync flushes buffered entries.
func Sync() error { return logger.Sync() }
