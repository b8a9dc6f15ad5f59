// Package logging builds the process zap logger and carries request-scoped
// loggers through a context.
package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const loggerKey ctxKey = iota

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// NewLogger builds a JSON production logger, or a console logger when ENV is
// dev/development. LOG_LEVEL overrides the level.
func NewLogger() (*zap.Logger, error) {
	var config zap.Config

	switch os.Getenv("ENV") {
	case "dev", "development":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return config.Build()
}

// DefaultLogger returns the process logger, falling back to a no-op logger if
// the configured one cannot be built.
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		l, err := NewLogger()
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
			l = zap.NewNop()
		}
		defaultLogger = l
	})
	return defaultLogger
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or fallback when none is set.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return DefaultLogger()
}

// L is shorthand for FromContext with the default logger as fallback.
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx, nil)
}

// WithFields adds structured fields to the logger in ctx.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, L(ctx).With(fields...))
}
