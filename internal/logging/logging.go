// Package logging builds the zap loggers used across the ORM and CLI.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings
type Config struct {
	// Level is one of debug, info, warn, error
	Level string
	// Development enables console encoding and stack traces on warnings
	Development bool
	// SlowThreshold marks SQL slower than this at warn level. Zero disables it.
	SlowThreshold time.Duration
}

// ParseLevel converts a level name to a zapcore.Level
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "silent", "off":
		return zapcore.DPanicLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger for the configuration
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// OrNop returns the logger, or a no-op logger when nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// SQLTracer logs executed SQL with its duration
type SQLTracer struct {
	Logger        *zap.Logger
	SlowThreshold time.Duration
}

// Trace logs one statement. Errors log at error, slow statements at warn and
// everything else at debug.
func (t SQLTracer) Trace(begin time.Time, sql string, rows int64, err error) {
	logger := OrNop(t.Logger)
	elapsed := time.Since(begin)

	fields := []zap.Field{
		zap.String("duration", fmt.Sprintf("%.3fms", float64(elapsed.Nanoseconds())/1e6)),
		zap.String("sql", sql),
	}
	if rows != -1 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	switch {
	case err != nil:
		logger.Error("SQL executed", append(fields, zap.Error(err))...)
	case t.SlowThreshold != 0 && elapsed > t.SlowThreshold:
		logger.Warn("SLOW SQL executed", append(fields, zap.String("slow_threshold", t.SlowThreshold.String()))...)
	default:
		logger.Debug("SQL executed", fields...)
	}
}
