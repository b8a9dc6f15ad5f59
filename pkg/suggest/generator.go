package suggest

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/config"
	"github.com/studioweb/quoteai/pkg/llm"
	"github.com/studioweb/quoteai/pkg/metrics"
	"github.com/studioweb/quoteai/pkg/models"
	"github.com/studioweb/quoteai/pkg/tracer"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

const schemaName = "estimation_suggestion"

// suggestionSchema is the strict response_format schema for models.Suggestion.
var suggestionSchema = mustSchema()

func mustSchema() json.RawMessage {
	types := make([]string, len(models.ProjectTypes))
	for i, t := range models.ProjectTypes {
		types[i] = string(t)
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"project_type": map[string]any{"type": "string", "enum": types},
			"page_list":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"explanation":  map[string]any{"type": "string"},
		},
		"required":             []string{"project_type", "page_list", "explanation"},
		"additionalProperties": false,
	}
	b, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return b
}

// Generation is one structured model call and what it cost.
type Generation struct {
	Suggestion models.Suggestion
	Model      string
	Usage      models.Usage
	Latency    time.Duration
}

// Generator produces a suggestion for a description. Errors wrap
// ErrGeneration; output that parsed but has the wrong shape also wraps
// models.ErrInvalidSuggestion. Usage is filled whenever the provider answered.
type Generator interface {
	Generate(ctx context.Context, description string) (Generation, error)
}

// ModelGenerator asks an OpenAI-compatible model for a structured suggestion.
type ModelGenerator struct {
	client      llm.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewModelGenerator builds the provider client from cfg. A missing API key is
// reported as ErrConfiguration.
func NewModelGenerator(cfg config.ModelConfig, logger *zap.Logger) (*ModelGenerator, error) {
	client, err := llm.NewClient(llm.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
	}, logger)
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err != nil {
		return nil, err
	}
	return newModelGenerator(client, cfg, logger), nil
}

func newModelGenerator(client llm.Client, cfg config.ModelConfig, logger *zap.Logger) *ModelGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelGenerator{
		client:      client,
		model:       cfg.Name,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("generator"),
	}
}

// Close releases the provider client.
func (g *ModelGenerator) Close() error {
	return g.client.Close()
}

func (g *ModelGenerator) Generate(ctx context.Context, description string) (gen Generation, err error) {
	ctx, span := tracer.Start(ctx, "suggest.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	gen = Generation{Model: g.model}
	status := "error"
	start := time.Now()
	defer func() {
		gen.Latency = time.Since(start)
		metrics.ModelCallDuration.WithLabelValues(status).Observe(gen.Latency.Seconds())
	}()

	system, user, err := renderPrompts(description)
	if err != nil {
		return gen, fmt.Errorf("%w: render prompts: %w", ErrGeneration, err)
	}

	resp, err := g.client.ChatCompletion(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		ResponseFormat: &llm.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &llm.JSONSchema{
				Name:   schemaName,
				Strict: true,
				Schema: suggestionSchema,
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return gen, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if resp.Model != "" {
		gen.Model = resp.Model
	}
	gen.Usage = models.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	s, err := parseSuggestion(resp)
	if err != nil {
		status = "invalid"
		g.logger.Warn("model output rejected",
			zap.Error(err),
			zap.String("finish_reason", resp.FinishReason),
		)
		span.SetStatus(codes.Error, "invalid model output")
		return gen, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	status = "ok"
	gen.Suggestion = s
	return gen, nil
}

func renderPrompts(description string) (system, user string, err error) {
	var sb, ub bytes.Buffer
	if err := prompts.ExecuteTemplate(&sb, "system.tmpl", struct {
		ProjectTypes []models.ProjectType
	}{models.ProjectTypes}); err != nil {
		return "", "", err
	}
	if err := prompts.ExecuteTemplate(&ub, "user.tmpl", struct {
		Description string
	}{strings.TrimSpace(description)}); err != nil {
		return "", "", err
	}
	return sb.String(), ub.String(), nil
}

// parseSuggestion decodes the reply strictly: one JSON object, no unknown
// fields, then Validate.
func parseSuggestion(resp *llm.ChatResponse) (models.Suggestion, error) {
	if resp.Refusal != "" {
		return models.Suggestion{}, fmt.Errorf("%w: model refused: %s", models.ErrInvalidSuggestion, resp.Refusal)
	}
	if resp.FinishReason == "length" {
		return models.Suggestion{}, fmt.Errorf("%w: reply truncated", models.ErrInvalidSuggestion)
	}

	dec := json.NewDecoder(strings.NewReader(resp.Content))
	dec.DisallowUnknownFields()

	var s models.Suggestion
	if err := dec.Decode(&s); err != nil {
		return models.Suggestion{}, fmt.Errorf("%w: decode reply: %w", models.ErrInvalidSuggestion, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.Suggestion{}, fmt.Errorf("%w: trailing data after reply object", models.ErrInvalidSuggestion)
	}
	if err := s.Validate(); err != nil {
		return models.Suggestion{}, err
	}
	return s, nil
}
