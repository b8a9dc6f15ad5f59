// Package suggest turns a free-text project description into estimation
// parameters, serving repeated descriptions from the suggestion cache.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/cache"
	"github.com/studioweb/quoteai/pkg/estimate"
	"github.com/studioweb/quoteai/pkg/logging"
	"github.com/studioweb/quoteai/pkg/metrics"
	"github.com/studioweb/quoteai/pkg/models"
	"github.com/studioweb/quoteai/pkg/tracer"
)

// DefaultMinLength is the minimum trimmed description length in characters.
const DefaultMinLength = 20

// Outcome labels of suggest_requests_total.
const (
	outcomeRejected  = "rejected"
	outcomeHit       = "hit"
	outcomeGenerated = "generated"
	outcomeRaceLost  = "race_lost"
	outcomeDegraded  = "degraded"
	outcomeFailed    = "failed"
)

// Cache is the part of cache.Store the engine uses.
type Cache interface {
	Lookup(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error)
	InsertIfAbsent(ctx context.Context, fingerprint, sourceText string, s models.Suggestion) (models.CacheEntry, bool, error)
}

// Recorder stores one usage record per model call.
type Recorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// Engine orchestrates validation, cache lookup, generation and derivation.
// It is safe for concurrent use and holds no lock across I/O; concurrent
// inserts for one fingerprint are settled by the cache.
type Engine struct {
	gen       Generator
	cache     Cache
	recorder  Recorder
	minLength int
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache attaches a suggestion cache. Without one every request generates.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRecorder records usage of every model call.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMinLength overrides DefaultMinLength.
func WithMinLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// NewEngine creates an Engine around gen.
func NewEngine(gen Generator, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		gen:       gen,
		minLength: DefaultMinLength,
		logger:    logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze returns the estimation envelope for description. It never panics;
// every failure is a failure envelope whose Err wraps ErrValidation or
// ErrGeneration.
func (e *Engine) Analyze(ctx context.Context, description string) (res models.Result) {
	ctx, span := tracer.Start(ctx, "suggest.Analyze")
	defer span.End()

	logger := logging.FromContext(ctx, e.logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analyze panicked", zap.Any("panic", r), zap.Stack("stack"))
			metrics.SuggestRequestsTotal.WithLabelValues(outcomeFailed).Inc()
			res = models.Failed(fmt.Errorf("%w: panic: %v", ErrGeneration, r), MessageGenerationFailed)
		}
	}()

	if n := utf8.RuneCountInString(strings.TrimSpace(description)); n < e.minLength {
		metrics.SuggestRequestsTotal.WithLabelValues(outcomeRejected).Inc()
		return models.Failed(
			fmt.Errorf("%w: %d characters, need %d", ErrValidation, n, e.minLength),
			fmt.Sprintf(MessageTooShort, e.minLength),
		)
	}

	fp := cache.Fingerprint(description)
	logger = logger.With(zap.String("fingerprint", fp[:12]))
	span.SetAttributes(attribute.String("suggest.fingerprint", fp))

	useCache := e.cache != nil
	if useCache {
		start := time.Now()
		entry, ok, err := e.cache.Lookup(ctx, fp)
		switch {
		case err != nil:
			logger.Warn("cache_unavailable", zap.String("op", "lookup"), zap.Error(err))
			useCache = false
		case ok:
			logger.Info("cache_decision",
				zap.Bool("hit", true),
				zap.Int64("use_count", entry.UseCount),
				zap.Duration("latency", time.Since(start)),
			)
			span.SetAttributes(attribute.Bool("suggest.cache_hit", true))
			metrics.SuggestRequestsTotal.WithLabelValues(outcomeHit).Inc()
			return succeed(entry.Suggestion(), true)
		default:
			logger.Info("cache_decision", zap.Bool("hit", false), zap.Duration("latency", time.Since(start)))
		}
	}
	span.SetAttributes(attribute.Bool("suggest.cache_hit", false))

	s, err := e.generate(ctx, logger, fp, description)
	if err != nil {
		metrics.SuggestRequestsTotal.WithLabelValues(outcomeFailed).Inc()
		return models.Failed(err, MessageGenerationFailed)
	}

	if !useCache {
		outcome := outcomeGenerated
		if e.cache != nil {
			outcome = outcomeDegraded
		}
		metrics.SuggestRequestsTotal.WithLabelValues(outcome).Inc()
		return succeed(s, false)
	}

	entry, inserted, err := e.cache.InsertIfAbsent(ctx, fp, description, s)
	if err != nil {
		logger.Warn("cache_unavailable", zap.String("op", "insert"), zap.Error(err))
		metrics.SuggestRequestsTotal.WithLabelValues(outcomeDegraded).Inc()
		return succeed(s, false)
	}
	if !inserted {
		logger.Info("cache_race_lost", zap.Int64("use_count", entry.UseCount))
		metrics.SuggestRequestsTotal.WithLabelValues(outcomeRaceLost).Inc()
		return succeed(entry.Suggestion(), true)
	}
	metrics.SuggestRequestsTotal.WithLabelValues(outcomeGenerated).Inc()
	return succeed(entry.Suggestion(), false)
}

// generate makes the single model call of a miss and validates its output.
// The call id joins its log lines to the usage record.
func (e *Engine) generate(ctx context.Context, logger *zap.Logger, fp, description string) (models.Suggestion, error) {
	callID := uuid.NewString()
	logger = logger.With(zap.String("call_id", callID))

	gen, err := e.gen.Generate(ctx, description)
	if err == nil {
		if verr := gen.Suggestion.Validate(); verr != nil {
			err = fmt.Errorf("%w: %w", ErrGeneration, verr)
		}
	}

	outcome := models.OutcomeGenerated
	switch {
	case errors.Is(err, models.ErrInvalidSuggestion):
		outcome = models.OutcomeInvalid
	case err != nil:
		outcome = models.OutcomeFailed
	}
	e.record(ctx, logger, callID, fp, gen, outcome)

	if err != nil {
		if !errors.Is(err, ErrGeneration) {
			err = fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		logger.Error("generation failed", zap.String("outcome", outcome), zap.Error(err))
		return models.Suggestion{}, err
	}

	logger.Info("suggestion generated",
		zap.String("project_type", string(gen.Suggestion.ProjectType)),
		zap.Int("page_count", gen.Suggestion.PageCount()),
		zap.Int("total_tokens", gen.Usage.TotalTokens),
		zap.Duration("latency", gen.Latency),
	)
	return gen.Suggestion, nil
}

func (e *Engine) record(ctx context.Context, logger *zap.Logger, callID, fp string, gen Generation, outcome string) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.Record(ctx, models.UsageRecord{
		CallID:           callID,
		Fingerprint:      fp,
		Model:            gen.Model,
		Outcome:          outcome,
		PromptTokens:     gen.Usage.PromptTokens,
		CompletionTokens: gen.Usage.CompletionTokens,
		TotalTokens:      gen.Usage.TotalTokens,
		LatencyMs:        gen.Latency.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("usage record failed", zap.Error(err))
	}
}

// succeed derives page count and buckets from the canonical page list.
func succeed(s models.Suggestion, fromCache bool) models.Result {
	d := estimate.Derive(s.PageCount())
	return models.Succeeded(models.Estimate{
		ProjectType:     s.ProjectType,
		PageList:        s.PageList,
		PageCount:       d.PageCount,
		TimelineBucket:  d.Timeline,
		BudgetBucket:    d.Budget,
		Explanation:     s.Explanation,
		ServedFromCache: fromCache,
	})
}
