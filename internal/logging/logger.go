// Package logging wraps zap with the field-constructor shape the rest of
// the codebase expects (logger.String, logger.Int64, logger.Err, ...),
// matching the logging surface the platform's service packages import.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a typed structured-logging field.
type Field = zap.Field

// String builds a string field.
func String(key, value string) Field { return zap.String(key, value) }

// Int builds an int field.
func Int(key string, value int) Field { return zap.Int(key, value) }

// Int64 builds an int64 field.
func Int64(key string, value int64) Field { return zap.Int64(key, value) }

// Uint64 builds a uint64 field.
func Uint64(key string, value uint64) Field { return zap.Uint64(key, value) }

// Err builds an error field.
func Err(err error) Field { return zap.Error(err) }

// Duration builds a duration field.
func Duration(key string, value interface{ String() string }) Field {
	return zap.String(key, value.String())
}

// Config controls logger construction.
type Config struct {
	Level       string
	Environment string
}

// Logger is the structured logger used throughout the indexer.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger from Config, defaulting to JSON output in
// non-development environments and console output otherwise.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		_ = level.Set(cfg.Level)
	}

	var zc zap.Config
	if cfg.Environment == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// NewNop builds a no-op logger, useful for tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }
