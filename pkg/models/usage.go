package models

import "time"

// Usage represents token usage from an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Outcome values for a recorded model call.
const (
	OutcomeGenerated = "generated"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// UsageRecord tracks one model call made on a cache miss.
type UsageRecord struct {
	ID               int64     `json:"id"`
	CallID           string    `json:"call_id"`
	Fingerprint      string    `json:"fingerprint"`
	Model            string    `json:"model"`
	Outcome          string    `json:"outcome"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates model calls per model and outcome.
type UsageSummary struct {
	Model           string `json:"model"`
	Outcome         string `json:"outcome"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int64  `json:"total_prompt_tokens"`
	TotalCompletion int64  `json:"total_completion_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
	AvgLatencyMs    int64  `json:"avg_latency_ms"`
}
