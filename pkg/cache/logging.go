package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/logging"
	"github.com/studioweb/quoteai/pkg/metrics"
	"github.com/studioweb/quoteai/pkg/models"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs every call and counts it in
// metrics.CacheOperationsTotal.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (s *LoggingStore) Lookup(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error) {
	start := time.Now()
	entry, ok, err := s.inner.Lookup(ctx, fingerprint)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	fields := []zap.Field{zap.String("fingerprint", fingerprint)}
	if ok {
		fields = append(fields, zap.Int64("use_count", entry.UseCount))
	}
	s.observe(ctx, "lookup", result, start, err, fields...)
	return entry, ok, err
}

func (s *LoggingStore) InsertIfAbsent(ctx context.Context, fingerprint, sourceText string, sg models.Suggestion) (models.CacheEntry, bool, error) {
	start := time.Now()
	entry, inserted, err := s.inner.InsertIfAbsent(ctx, fingerprint, sourceText, sg)

	result := "conflict"
	if err != nil {
		result = "error"
	} else if inserted {
		result = "inserted"
	}
	s.observe(ctx, "insert", result, start, err, zap.String("fingerprint", fingerprint))
	return entry, inserted, err
}

func (s *LoggingStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	start := time.Now()
	n, err := s.inner.PurgeOlderThan(ctx, age)
	s.observe(ctx, "purge", resultOf(err), start, err, zap.Duration("age", age), zap.Int64("deleted", n))
	return n, err
}

func (s *LoggingStore) PurgeAll(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.inner.PurgeAll(ctx)
	s.observe(ctx, "purge_all", resultOf(err), start, err, zap.Int64("deleted", n))
	return n, err
}

func (s *LoggingStore) TopByUsage(ctx context.Context, n int) ([]models.CacheEntry, error) {
	start := time.Now()
	entries, err := s.inner.TopByUsage(ctx, n)
	s.observe(ctx, "top", resultOf(err), start, err, zap.Int("limit", n), zap.Int("returned", len(entries)))
	return entries, err
}

func (s *LoggingStore) Stats(ctx context.Context) (models.CacheStats, error) {
	start := time.Now()
	st, err := s.inner.Stats(ctx)
	s.observe(ctx, "stats", resultOf(err), start, err, zap.Int64("entries", st.Entries))
	return st, err
}

func (s *LoggingStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *LoggingStore) Close() error {
	return s.inner.Close()
}

func (s *LoggingStore) observe(ctx context.Context, op, result string, start time.Time, err error, extra ...zap.Field) {
	metrics.CacheOperationsTotal.WithLabelValues(op, result).Inc()

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	fields := append([]zap.Field{
		zap.String("cache_backend", s.backend),
		zap.String("cache_result", result),
		zap.Float64("latency_ms", latencyMs),
	}, extra...)

	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("cache_"+op, append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("cache_"+op, fields...)
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
