// Package http exposes the orchestration engine over a REST surface:
// pattern execution and inspection, ownership override management, and
// circuit breaker operations.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfold/tessera/pkg/domain"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Engine defines the interface for the tessera orchestration core.
type Engine interface {
	Run(ctx context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error)
	Patterns() []*domain.PatternSpec
	Pattern(id string) (*domain.PatternSpec, error)
	Ownership(ctx context.Context) (map[string]domain.OwnershipOverride, error)
	SetOwnership(ctx context.Context, capability string, override *domain.OwnershipOverride) error
	ResetBreaker(agent string)
	BreakerStates() map[string]string
	Version() string
}

// Server holds the HTTP handler state.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// Option configures the handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	logger   *slog.Logger
	registry prometheus.Gatherer
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) { c.logger = logger }
}

// WithMetrics mounts /metrics backed by the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *handlerConfig) { c.registry = g }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	cfg := handlerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	server := &Server{engine: engine, logger: cfg.logger}
	if _, err := loadSpec(); err != nil {
		cfg.logger.Error("embedded openapi spec invalid", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	r.Get("/patterns", server.ListPatterns)
	r.Get("/patterns/{id}", server.GetPattern)
	r.Post("/patterns/{id}/run", server.RunPattern)

	r.Get("/ownership", server.ListOwnership)
	r.Put("/ownership/{capability}", server.SetOwnership)
	r.Delete("/ownership/{capability}", server.DeleteOwnership)

	r.Get("/breakers", server.ListBreakers)
	r.Post("/breakers/{agent}/reset", server.ResetBreaker)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	if cfg.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Tessera API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// RunRequest is the body of POST /patterns/{id}/run.
type RunRequest struct {
	Inputs         map[string]any `json:"inputs"`
	RequestID      string         `json:"request_id,omitempty"`
	TraceID        string         `json:"trace_id,omitempty"`
	DataSnapshotID string         `json:"data_snapshot_id,omitempty"`
	Principal      string         `json:"principal,omitempty"`
}

// RunResponse is the body of POST /patterns/{id}/run responses. The trace
// is present even when the run failed.
type RunResponse struct {
	Outputs map[string]any         `json:"outputs,omitempty"`
	Trace   *domain.ExecutionTrace `json:"trace"`
	Error   string                 `json:"error,omitempty"`
}

// PatternSummary is one entry of GET /patterns.
type PatternSummary struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	Description string `json:"description,omitempty"`
}

// RunPattern handles the POST /patterns/{id}/run request.
func (s *Server) RunPattern(w http.ResponseWriter, r *http.Request) {
	patternID := chi.URLParam(r, "id")

	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("RunPattern: invalid request body", "error", err)
		return
	}
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}

	req := domain.RequestContext{
		RequestID:      body.RequestID,
		TraceID:        body.TraceID,
		DataSnapshotID: body.DataSnapshotID,
		Principal:      body.Principal,
	}

	result, err := s.engine.Run(r.Context(), patternID, body.Inputs, req)
	if err != nil {
		status := runErrorStatus(err)
		resp := RunResponse{Error: err.Error()}
		if result != nil {
			resp.Outputs = result.Outputs
			resp.Trace = result.Trace
		}
		s.logger.Error("RunPattern failed", "pattern", patternID, "error", err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Outputs: result.Outputs, Trace: result.Trace})
}

// runErrorStatus maps run failures onto HTTP statuses. Execution failures
// stay 500; caller mistakes get 4xx.
func runErrorStatus(err error) int {
	var notFound *domain.PatternNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	var invalid *domain.InputValidationError
	if errors.As(err, &invalid) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// ListPatterns handles the GET /patterns request.
func (s *Server) ListPatterns(w http.ResponseWriter, _ *http.Request) {
	specs := s.engine.Patterns()
	summaries := make([]PatternSummary, 0, len(specs))
	for _, spec := range specs {
		summaries = append(summaries, PatternSummary{
			ID:          spec.ID,
			Version:     spec.Version,
			Description: spec.Description,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetPattern handles the GET /patterns/{id} request.
func (s *Server) GetPattern(w http.ResponseWriter, r *http.Request) {
	spec, err := s.engine.Pattern(chi.URLParam(r, "id"))
	if err != nil {
		var notFound *domain.PatternNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		s.logger.Error("GetPattern failed", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// ListOwnership handles the GET /ownership request.
func (s *Server) ListOwnership(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.engine.Ownership(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		s.logger.Error("ListOwnership failed", "error", err)
		return
	}
	if overrides == nil {
		overrides = map[string]domain.OwnershipOverride{}
	}
	writeJSON(w, http.StatusOK, overrides)
}

// SetOwnership handles the PUT /ownership/{capability} request.
func (s *Server) SetOwnership(w http.ResponseWriter, r *http.Request) {
	capability := chi.URLParam(r, "capability")

	var override domain.OwnershipOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("SetOwnership: invalid request body", "error", err)
		return
	}
	if override.TargetAgent == "" {
		writeError(w, http.StatusBadRequest, "target_agent is required")
		return
	}
	if override.RolloutPercentage < 0 || override.RolloutPercentage > 100 {
		writeError(w, http.StatusBadRequest, "rollout_percentage must be between 0 and 100")
		return
	}

	if err := s.engine.SetOwnership(r.Context(), capability, &override); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		s.logger.Error("SetOwnership failed", "capability", capability, "error", err)
		return
	}
	s.logger.Info("ownership override set",
		"capability", capability,
		"target_agent", override.TargetAgent,
		"rollout_pct", override.RolloutPercentage,
		"enabled", override.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteOwnership handles the DELETE /ownership/{capability} request.
func (s *Server) DeleteOwnership(w http.ResponseWriter, r *http.Request) {
	capability := chi.URLParam(r, "capability")
	if err := s.engine.SetOwnership(r.Context(), capability, nil); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		s.logger.Error("DeleteOwnership failed", "capability", capability, "error", err)
		return
	}
	s.logger.Info("ownership override removed", "capability", capability)
	w.WriteHeader(http.StatusNoContent)
}

// ListBreakers handles the GET /breakers request.
func (s *Server) ListBreakers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.BreakerStates())
}

// ResetBreaker handles the POST /breakers/{agent}/reset request.
func (s *Server) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	s.engine.ResetBreaker(agent)
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	apiVersion := "unknown"
	if doc, err := loadSpec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "tessera-http",
		"version":     s.engine.Version(),
		"api_version": apiVersion,
	})
}

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// loadSpec parses and validates the embedded OpenAPI document. The document
// never changes at run time, so the parse happens once.
func loadSpec() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openAPISpec)
		if err != nil {
			specErr = fmt.Errorf("parsing embedded openapi spec: %w", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			specErr = fmt.Errorf("validating embedded openapi spec: %w", err)
			return
		}
		specDoc = doc
	})
	return specDoc, specErr
}

// Helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
