// Package llm is a small client for OpenAI-compatible chat completion APIs
// with structured (JSON schema) output.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema is a named schema for response_format.type=json_schema.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ResponseFormat constrains the reply format.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		if m.Role != RoleSystem && m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("invalid role %q in messages[%d]", m.Role, i)
		}
		if m.Content == "" && m.Role != RoleSystem {
			return fmt.Errorf("content is required for messages[%d]", i)
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if f := r.ResponseFormat; f != nil && f.Type == "json_schema" && f.JSONSchema == nil {
		return errors.New("json_schema response format needs a schema")
	}
	return nil
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Refusal      string
	Usage        Usage
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llmclient: upstream %d: %s (%s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("llmclient: upstream %d: %s", e.StatusCode, e.Message)
}

// Auth reports whether the provider rejected the credentials.
func (e *ProviderError) Auth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Quota reports whether the account ran out of quota or was rate limited.
func (e *ProviderError) Quota() bool {
	return e.StatusCode == 429 || e.Code == "insufficient_quota" || e.Type == "insufficient_quota"
}

type Client interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Close() error
}
