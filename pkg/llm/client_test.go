package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, url string, retries int) Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     url,
		APIKey:      "test-key",
		MaxRetries:  retries,
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pingRequest() *ChatRequest {
	return &ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []ChatMessage{{Role: RoleUser, Content: "ping"}},
		Temperature: 0.3,
	}
}

func TestNewClientMissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := (&Config{BaseURL: "http://example.test/"}).WithDefaults()
	if cfg.BaseURL != "http://example.test" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}

	cfg = (&Config{}).WithDefaults()
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
}

func TestChatCompletionSuccess(t *testing.T) {
	t.Parallel()

	var gotReq ChatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}

		resp := providerChatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []providerChatChoice{{
				Message:      providerMessage{Role: RoleAssistant, Content: `{"ok":true}`},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	req := pingRequest()
	req.ResponseFormat = &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchema{
			Name:   "ok",
			Strict: true,
			Schema: json.RawMessage(`{"type":"object"}`),
		},
	}
	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.JSONSchema == nil || !gotReq.ResponseFormat.JSONSchema.Strict {
		t.Errorf("response_format not forwarded: %+v", gotReq.ResponseFormat)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
}

func TestChatCompletionProviderError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)
	_, err := client.ChatCompletion(context.Background(), pingRequest())

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !perr.Auth() || perr.Code != "invalid_api_key" {
		t.Errorf("unexpected provider error: %+v", perr)
	}
	if calls.Load() != 1 {
		t.Errorf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestChatCompletionRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(providerChatResponse{
			Choices: []providerChatChoice{{Message: providerMessage{Role: RoleAssistant, Content: "ok"}}},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)
	resp, err := client.ChatCompletion(context.Background(), pingRequest())
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestChatCompletionQuotaAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1)
	_, err := client.ChatCompletion(context.Background(), pingRequest())

	var perr *ProviderError
	if !errors.As(err, &perr) || !perr.Quota() {
		t.Fatalf("expected quota error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	if _, err := client.ChatCompletion(context.Background(), pingRequest()); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatRequestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  ChatRequest
	}{
		{"no model", ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}}},
		{"no messages", ChatRequest{Model: "m"}},
		{"bad role", ChatRequest{Model: "m", Messages: []ChatMessage{{Role: "tool", Content: "x"}}}},
		{"temperature", ChatRequest{Model: "m", Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}, Temperature: 3}},
		{"schema missing", ChatRequest{Model: "m", Messages: []ChatMessage{{Role: RoleUser, Content: "x"}}, ResponseFormat: &ResponseFormat{Type: "json_schema"}}},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	if d := parseRetryAfter(resp); d != 0 {
		t.Errorf("missing header = %v", d)
	}
	resp.Header.Set("Retry-After", "2")
	if d := parseRetryAfter(resp); d != 2*time.Second {
		t.Errorf("seconds = %v", d)
	}
	resp.Header.Set("Retry-After", "3600")
	if d := parseRetryAfter(resp); d != maxRetryAfter {
		t.Errorf("capped = %v", d)
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 20; attempt++ {
		d := computeBackoff(100*time.Millisecond, attempt)
		if d < 0 || d > maxBackoff {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
