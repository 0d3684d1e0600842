// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/ramp/internal/config"
	"github.com/jeranaias/ramp/internal/ollama"
	"github.com/jeranaias/ramp/internal/plan"
	"github.com/jeranaias/ramp/internal/sse"
	"github.com/jeranaias/ramp/internal/storage"
	"github.com/jeranaias/ramp/internal/structured"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps the request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// PLANNER INTERFACE
// ============================================================================

// Planner is the orchestration surface the server dispatches to. Satisfied
// by *plan.Orchestrator.
type Planner interface {
	Generate(ctx context.Context, req plan.GenerateRequest, sink plan.EventSink) (*plan.Result, error)
	RegenerateStep(ctx context.Context, planID, stepKey string, sink plan.EventSink) (*storage.Step, error)
	Playbook(ctx context.Context, planID, stepKey string) (*plan.Playbook, error)
	Apply(planID string) ([]*storage.Task, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP front end for plan generation.
type Server struct {
	cfg     *config.Config
	planner Planner
	router  chi.Router
	server  *http.Server
	logger  *log.Logger
}

// NewServer wires a server. A nil logger falls back to the process default.
func NewServer(cfg *config.Config, planner Planner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:     cfg,
		planner: planner,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the middleware chain and all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst), s.logger))
	if s.cfg.Server.BearerToken != "" {
		s.router.Use(AuthMiddleware(s.cfg.Server.BearerToken, s.logger))
	}

	s.router.Post("/v1/plans", s.handlePlans)
	s.router.Get("/health", s.handleHealth)
}

// Handler exposes the routed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// planRequest is the single entry-point body. Op selects the operation;
// the remaining fields are op-specific.
type planRequest struct {
	Op     string `json:"op"` // "generate", "regenerate_step", "playbook", "apply"
	Stream bool   `json:"stream"`

	// generate
	CompanyName      string `json:"company_name,omitempty"`
	CompanyTitle     string `json:"company_title,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`

	// regenerate_step, playbook, apply
	PlanID  string `json:"plan_id,omitempty"`
	StepKey string `json:"step_key,omitempty"`
}

// ============================================================================
// PLANS HANDLER
// ============================================================================

// handlePlans handles POST /v1/plans.
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Printf("BAD_REQUEST_BODY | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Op {
	case "generate":
		s.handleGenerate(w, r, req)
	case "regenerate_step":
		s.handleRegenerateStep(w, r, req)
	case "playbook":
		s.handlePlaybook(w, r, req)
	case "apply":
		s.handleApply(w, req)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown op %q", req.Op))
	}
}

// handleGenerate runs a full plan generation, streamed or buffered.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, req planRequest) {
	genReq := plan.GenerateRequest{
		CompanyName:      req.CompanyName,
		CompanyTitle:     req.CompanyTitle,
		ShortDescription: req.ShortDescription,
	}

	if req.Stream {
		relay, err := sse.NewRelay(w)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}
		// A disconnecting caller must not cancel in-flight generation; the
		// run finishes and persists on its own schedule.
		ctx := context.WithoutCancel(r.Context())
		if _, err := s.planner.Generate(ctx, genReq, relay); err != nil {
			s.logger.Printf("GENERATE_STREAM_ERROR | error=%v", err)
		}
		return
	}

	result, err := s.planner.Generate(r.Context(), genReq, nil)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleRegenerateStep re-runs one step, streamed or buffered.
func (s *Server) handleRegenerateStep(w http.ResponseWriter, r *http.Request, req planRequest) {
	if req.PlanID == "" || req.StepKey == "" {
		s.writeError(w, http.StatusBadRequest, "plan_id and step_key are required")
		return
	}

	if req.Stream {
		relay, err := sse.NewRelay(w)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}
		ctx := context.WithoutCancel(r.Context())
		if _, err := s.planner.RegenerateStep(ctx, req.PlanID, req.StepKey, relay); err != nil {
			s.logger.Printf("REGENERATE_STREAM_ERROR | plan=%s step=%s error=%v", req.PlanID, req.StepKey, err)
		}
		return
	}

	step, err := s.planner.RegenerateStep(r.Context(), req.PlanID, req.StepKey, nil)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, step)
}

// handlePlaybook returns a deep-dive guide for one step. Always buffered.
func (s *Server) handlePlaybook(w http.ResponseWriter, r *http.Request, req planRequest) {
	if req.PlanID == "" || req.StepKey == "" {
		s.writeError(w, http.StatusBadRequest, "plan_id and step_key are required")
		return
	}

	pb, err := s.planner.Playbook(r.Context(), req.PlanID, req.StepKey)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pb)
}

// handleApply converts a plan into tasks.
func (s *Server) handleApply(w http.ResponseWriter, req planRequest) {
	if req.PlanID == "" {
		s.writeError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	tasks, err := s.planner.Apply(req.PlanID)
	if err != nil {
		s.writePlanError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"plan_id": req.PlanID,
		"tasks":   tasks,
	})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE responses stay open for the length of a
		// generation run.
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Printf("SERVER_START | addr=%s version=%s", addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}

// writePlanError maps an orchestration failure to an HTTP status.
func (s *Server) writePlanError(w http.ResponseWriter, err error) {
	var vErr *plan.ValidationError
	var exErr *structured.ExtractionError

	switch {
	case errors.As(err, &vErr):
		s.writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, storage.ErrPlanNotFound), errors.Is(err, storage.ErrStepNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &exErr), ollama.IsTimeout(err), ollama.IsTransport(err):
		s.logger.Printf("UPSTREAM_ERROR | error=%v", err)
		s.writeError(w, http.StatusBadGateway, "generation backend failed")
	default:
		s.logger.Printf("PLAN_ERROR | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "plan operation failed")
	}
}
