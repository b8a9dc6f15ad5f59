package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type suggestArgs struct {
	Description string `json:"description"`
}

type topArgs struct {
	Limit int `json:"limit"`
}

type usageArgs struct {
	Since string `json:"since"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"quoteai_suggest":     handleSuggest,
	"quoteai_cache_stats": handleCacheStats,
	"quoteai_cache_top":   handleCacheTop,
	"quoteai_usage":       handleUsage,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "quoteai_suggest",
		Description: "Suggest a project type, page list, timeline and budget bucket for a web project description.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"description"},
			"properties": map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "Free-text project description (at least 20 characters)",
				},
			},
		},
	},
	{
		Name:        "quoteai_cache_stats",
		Description: "Show suggestion cache statistics (entries, total uses, reuse rate, estimated savings).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "quoteai_cache_top",
		Description: "List the most reused cached suggestions.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries (optional, defaults to 10)",
				},
			},
		},
	},
	{
		Name:        "quoteai_usage",
		Description: "Show model token usage grouped by model and outcome.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional, defaults to 30 days ago)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleSuggest(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Analyzer == nil {
		return errorResult("Suggestion engine is not configured.")
	}
	var args suggestArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if strings.TrimSpace(args.Description) == "" {
		return errorResult("description is required")
	}

	res := s.deps.Analyzer.Analyze(ctx, args.Description)
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	if !res.Success {
		return errorResult(string(data))
	}
	return textResult(string(data))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.deps.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats, s.deps.CostPerCall))
}

func handleCacheTop(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	args := topArgs{Limit: 10}
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	entries, err := s.deps.Cache.TopByUsage(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching top entries: " + err.Error())
	}
	return textResult(formatTopEntries(entries))
}

func handleUsage(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Usage == nil {
		return textResult("Usage tracking is not configured.")
	}
	var args usageArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		since = t
	}

	rows, err := s.deps.Usage.Summary(ctx, since)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatUsageSummary(rows))
}
