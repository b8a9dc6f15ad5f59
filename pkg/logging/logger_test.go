package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestFromContext(t *testing.T) {
	base := zaptest.NewLogger(t)
	fallback := zap.NewNop()

	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger for empty context")
	}

	ctx := WithLogger(context.Background(), base)
	if got := FromContext(ctx, fallback); got != base {
		t.Error("expected context logger")
	}
}

func TestWithFields(t *testing.T) {
	base := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), base)
	ctx = WithFields(ctx, zap.String("request_id", "r-1"))

	if got := L(ctx); got == base {
		t.Error("expected a derived logger")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")

	l, err := NewLogger()
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Error("warn should be enabled")
	}
}
