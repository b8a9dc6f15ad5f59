// Package mcp exposes suggestions and cache statistics as MCP tools over
// stdio JSON-RPC 2.0.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/models"
)

// Analyzer runs the suggestion engine.
type Analyzer interface {
	Analyze(ctx context.Context, description string) models.Result
}

// CacheReader is the read side of the suggestion cache.
type CacheReader interface {
	Stats(ctx context.Context) (models.CacheStats, error)
	TopByUsage(ctx context.Context, n int) ([]models.CacheEntry, error)
}

// UsageReporter summarizes model usage.
type UsageReporter interface {
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
}

// Deps are the optional collaborators behind the tools. A nil field makes
// its tools report "not configured".
type Deps struct {
	Analyzer    Analyzer
	Cache       CacheReader
	Usage       UsageReporter
	CostPerCall float64
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	deps    Deps
	version string
	logger  *zap.Logger
}

// New creates a new MCP Server.
func New(deps Deps, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:    deps,
		version: version,
		logger:  logger.Named("mcp"),
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, replyError(nil, CodeParseError, "parse error"))
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			// notification
			continue
		}
		s.writeResponse(w, resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return replyError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return reply(req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      ServerInfo{Name: "quoteai", Version: s.version},
		Capabilities:    map[string]any{"tools": map[string]any{}},
	})
}

func (s *Server) handleToolsList(req *Request) *Response {
	return reply(req.ID, ToolsListResult{Tools: allTools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return replyError(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return reply(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	s.logger.Debug("tool call", zap.String("tool", params.Name))
	return reply(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
