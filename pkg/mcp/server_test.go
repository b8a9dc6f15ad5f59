package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/studioweb/quoteai/pkg/models"
)

type fakeAnalyzer struct {
	last string
	res  models.Result
}

func (f *fakeAnalyzer) Analyze(_ context.Context, description string) models.Result {
	f.last = description
	return f.res
}

type fakeCache struct {
	stats   models.CacheStats
	entries []models.CacheEntry
	lastN   int
}

func (f *fakeCache) Stats(_ context.Context) (models.CacheStats, error) { return f.stats, nil }

func (f *fakeCache) TopByUsage(_ context.Context, n int) ([]models.CacheEntry, error) {
	f.lastN = n
	return f.entries, nil
}

type fakeUsage struct {
	rows  []models.UsageSummary
	since time.Time
}

func (f *fakeUsage) Summary(_ context.Context, since time.Time) ([]models.UsageSummary, error) {
	f.since = since
	return f.rows, nil
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`7`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "quoteai" || result.ServerInfo.Version != "test" {
		t.Errorf("server info = %+v", result.ServerInfo)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	if len(result.Tools) != len(toolHandlers) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(toolHandlers))
	}
	for _, tool := range result.Tools {
		if _, ok := toolHandlers[tool.Name]; !ok {
			t.Errorf("listed tool without handler: %s", tool.Name)
		}
	}
}

func TestSuggestTool(t *testing.T) {
	a := &fakeAnalyzer{res: models.Succeeded(models.Estimate{
		ProjectType:    models.ProjectECommerce,
		PageList:       []string{"Accueil", "Catalogue"},
		PageCount:      2,
		TimelineBucket: "fast",
		BudgetBucket:   "under 5k",
	})}
	srv := New(Deps{Analyzer: a}, "test", zaptest.NewLogger(t))

	result := callTool(t, srv, "quoteai_suggest", `{"description":"Boutique en ligne de thés bio"}`)
	if result.IsError {
		t.Errorf("unexpected isError: %s", result.Content[0].Text)
	}
	if a.last != "Boutique en ligne de thés bio" {
		t.Errorf("analyzed %q", a.last)
	}
	if !strings.Contains(result.Content[0].Text, `"project_type": "E-commerce"`) {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}
}

func TestSuggestToolFailureIsError(t *testing.T) {
	a := &fakeAnalyzer{res: models.Failed(nil, "trop court")}
	srv := New(Deps{Analyzer: a}, "test", zaptest.NewLogger(t))

	result := callTool(t, srv, "quoteai_suggest", `{"description":"court"}`)
	if !result.IsError || !strings.Contains(result.Content[0].Text, "trop court") {
		t.Errorf("result = %+v", result)
	}
}

func TestSuggestToolMissingDescription(t *testing.T) {
	a := &fakeAnalyzer{}
	srv := New(Deps{Analyzer: a}, "test", zaptest.NewLogger(t))

	result := callTool(t, srv, "quoteai_suggest", `{}`)
	if !result.IsError {
		t.Error("expected isError=true for missing description")
	}
	if a.last != "" {
		t.Error("analyzer called without description")
	}
}

func TestToolsNotConfigured(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))

	for _, name := range []string{"quoteai_suggest", "quoteai_cache_stats", "quoteai_cache_top", "quoteai_usage"} {
		result := callTool(t, srv, name, `{}`)
		if !strings.Contains(result.Content[0].Text, "not configured") {
			t.Errorf("%s: expected 'not configured', got: %s", name, result.Content[0].Text)
		}
	}
}

func TestCacheStatsTool(t *testing.T) {
	c := &fakeCache{stats: models.CacheStats{Entries: 40, TotalUses: 50}}
	srv := New(Deps{Cache: c, CostPerCall: 0.001}, "test", zaptest.NewLogger(t))

	text := callTool(t, srv, "quoteai_cache_stats", "").Content[0].Text
	for _, want := range []string{"40", "50", "25.0%", "$0.0100"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in: %s", want, text)
		}
	}
}

func TestCacheTopTool(t *testing.T) {
	c := &fakeCache{entries: []models.CacheEntry{{
		SourceText:  "Un site vitrine pour une boulangerie de quartier avec horaires et carte",
		ProjectType: models.ProjectShowcase,
		PageList:    []string{"Accueil", "Carte", "Contact"},
		UseCount:    12,
	}}}
	srv := New(Deps{Cache: c}, "test", zaptest.NewLogger(t))

	text := callTool(t, srv, "quoteai_cache_top", `{"limit":0}`).Content[0].Text
	if c.lastN != 10 {
		t.Errorf("limit = %d, want default 10", c.lastN)
	}
	if !strings.Contains(text, "Site Vitrine") || !strings.Contains(text, "12") || !strings.Contains(text, "...") {
		t.Errorf("unexpected output: %s", text)
	}
}

func TestUsageTool(t *testing.T) {
	u := &fakeUsage{rows: []models.UsageSummary{
		{Model: "gpt-4o-mini", Outcome: models.OutcomeGenerated, RequestCount: 3, TotalPrompt: 900, TotalCompletion: 120, TotalTokens: 1020, AvgLatencyMs: 850},
	}}
	srv := New(Deps{Usage: u}, "test", zaptest.NewLogger(t))

	text := callTool(t, srv, "quoteai_usage", `{"since":"2026-01-01"}`).Content[0].Text
	if !strings.Contains(text, "gpt-4o-mini") || !strings.Contains(text, "1020") {
		t.Errorf("unexpected output: %s", text)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !u.since.Equal(want) {
		t.Errorf("since = %v, want %v", u.since, want)
	}

	result := callTool(t, srv, "quoteai_usage", `{"since":"yesterday"}`)
	if !result.IsError {
		t.Error("expected isError=true for bad date")
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))
	result := callTool(t, srv, "quoteai_estimate_budget", `{}`)
	if !result.IsError {
		t.Error("expected isError=true for unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestParseError(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))

	var out bytes.Buffer
	if err := srv.Run(context.Background(), strings.NewReader("{not json\n"), &out); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(Deps{}, "test", zaptest.NewLogger(t))
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}
