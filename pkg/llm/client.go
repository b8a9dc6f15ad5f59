package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	maxRequestSize  = 1 << 20 // 1MB JSON payload
	maxResponseSize = 4 << 20
)

func (c *client) ChatCompletion(parentCtx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}
	if len(bodyBytes) > maxRequestSize {
		return nil, fmt.Errorf("llmclient: request too large (%d bytes, max %d)", len(bodyBytes), maxRequestSize)
	}

	c.logger.Debug("llm request starting",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.RequestTimeout)
	defer cancel()

	url := c.cfg.BaseURL + "/v1/chat/completions"

	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("llmclient: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(httpReq)
	}

	resp, err := c.doWithRetry(ctx, bodyBytes, doOnce)
	if err != nil {
		c.logger.Error("llm request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.providerError(resp)
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		return nil, fmt.Errorf("llmclient: decode upstream response: %w", err)
	}
	if len(pResp.Choices) == 0 {
		c.logger.Error("llm provider returned no choices", zap.String("model", req.Model))
		return nil, fmt.Errorf("llmclient: provider returned no choices")
	}

	choice := pResp.Choices[0]
	out := &ChatResponse{
		ID:           pResp.ID,
		Model:        pResp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Refusal:      choice.Message.Refusal,
	}
	if pResp.Usage != nil {
		out.Usage = *pResp.Usage
	}

	c.logger.Info("llm request completed",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.String("finish_reason", out.FinishReason),
		zap.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func (c *client) providerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		c.logger.Error("llm provider error",
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", perr.Error.Type),
			zap.String("error_message", perr.Error.Message),
		)
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Type:       perr.Error.Type,
			Code:       perr.code(),
			Message:    perr.Error.Message,
		}
	}

	c.logger.Error("llm upstream error",
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(body), 200)),
	)
	return &ProviderError{
		StatusCode: resp.StatusCode,
		Message:    truncate(string(body), 200),
	}
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
