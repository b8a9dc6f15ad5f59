// Package server exposes the suggestion engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/studioweb/quoteai/pkg/logging"
	"github.com/studioweb/quoteai/pkg/metrics"
	"github.com/studioweb/quoteai/pkg/models"
	"github.com/studioweb/quoteai/pkg/suggest"
)

const (
	defaultRequestTimeout = 90 * time.Second
	defaultMaxBodyBytes   = 64 * 1024
	shutdownTimeout       = 5 * time.Second

	messageBadRequest = "Requête invalide."
	messageTooLarge   = "Description trop longue."
	messageInternal   = "Erreur interne."
)

// Analyzer is the suggestion engine as seen by the HTTP layer.
type Analyzer interface {
	Analyze(ctx context.Context, description string) models.Result
}

// Pinger reports whether the cache storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds HTTP settings. Zero values take defaults.
type Config struct {
	Listen         string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server is the quoteai HTTP surface.
type Server struct {
	cfg      Config
	analyzer Analyzer
	store    Pinger
	logger   *zap.Logger
	router   chi.Router
}

// New creates a Server. A nil analyzer makes /ai/suggest answer 503; a nil
// store means the engine runs without a cache.
func New(cfg Config, analyzer Analyzer, store Pinger, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		store:    store,
		logger:   logger.Named("http"),
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware(routePattern))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer())
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(maxBodySize(cfg.MaxBodyBytes))

	r.Post("/ai/suggest", s.handleSuggest)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("quoteai listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// suggestRequest accepts the current field name and the legacy form field.
type suggestRequest struct {
	Description       string `json:"description"`
	DescriptionProjet string `json:"description_projet"`
}

func (r suggestRequest) text() string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return r.DescriptionProjet
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())

	if s.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: suggest.MessageUnavailable})
		return
	}

	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Message: messageTooLarge})
			return
		}
		logger.Warn("invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorBody{Message: messageBadRequest})
		return
	}

	res := s.analyzer.Analyze(r.Context(), req.text())
	writeJSON(w, statusFor(res), res)
}

// statusFor maps an envelope to its HTTP status. Generation failures are soft
// and keep 200 so the form can show the message.
func statusFor(res models.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Err, suggest.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(res.Err, suggest.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

type healthBody struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	AI     string `json:"ai"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Store: "disabled", AI: "ok"}
	if s.analyzer == nil {
		body.Status = "degraded"
		body.AI = "unavailable"
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			logging.L(r.Context()).Warn("store ping failed", zap.Error(err))
			body.Status = "degraded"
			body.Store = "unavailable"
		} else {
			body.Store = "ok"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
