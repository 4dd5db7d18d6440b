package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/health"
	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/scheduler"
	"github.com/outfieldhq/learning-engine/internal/store"
	"github.com/outfieldhq/learning-engine/internal/weights"
)

// apiStore is the slice of the pattern store the admin API reads from.
type apiStore interface {
	GetPattern(ctx context.Context, tenantID string, t model.PatternType) (*model.Pattern, error)
	ListPatterns(ctx context.Context, tenantID string) ([]*model.Pattern, error)
	GetRun(ctx context.Context, runID string) (*model.LearningRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*model.LearningRun, error)
}

// findingScanner is satisfied by *health.Scanner.
type findingScanner interface {
	Scan(ctx context.Context) ([]health.Finding, error)
}

// apiServer exposes read access to stored patterns, weights, and runs,
// plus trigger endpoints that hand work to the scheduler backend. A nil
// runner means learning is disabled; the trigger endpoints answer 503.
type apiServer struct {
	store   apiStore
	weights *weights.Cache
	scanner findingScanner
	runner  scheduler.Runner
	logger  *zap.Logger
}

func newRouter(s *apiServer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleLiveness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/patterns/{tenantID}", s.handleListPatterns)
		r.Get("/patterns/{tenantID}/{patternType}", s.handleGetPattern)
		r.Get("/weights/{tenantID}", s.handleGetWeights)
		r.Get("/health/patterns", s.handlePatternHealth)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Post("/learn", s.handleTriggerLearn)
		r.Post("/backfill/{tenantID}", s.handleTriggerBackfill)
	})

	return r
}

func (s *apiServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	patterns, err := s.store.ListPatterns(r.Context(), tenantID)
	if err != nil {
		s.logger.Error("list patterns failed", zap.String("tenant_id", tenantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list patterns failed")
		return
	}
	if patterns == nil {
		patterns = []*model.Pattern{}
	}
	respondJSON(w, http.StatusOK, patterns)
}

func (s *apiServer) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	pt := model.PatternType(chi.URLParam(r, "patternType"))
	if !pt.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown pattern type %q", string(pt)))
		return
	}

	pattern, err := s.store.GetPattern(r.Context(), tenantID, pt)
	if err != nil {
		s.logger.Error("get pattern failed",
			zap.String("tenant_id", tenantID),
			zap.String("pattern_type", string(pt)),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "get pattern failed")
		return
	}
	if pattern == nil {
		respondError(w, http.StatusNotFound, "pattern not found")
		return
	}
	respondJSON(w, http.StatusOK, pattern)
}

type weightsResponse struct {
	TenantID   string             `json:"tenant_id"`
	Source     weights.Source     `json:"source"`
	Weights    map[string]float64 `json:"weights"`
	SampleSize int                `json:"sample_size,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`
}

// handleGetWeights always answers 200: tenants that never completed a WHO
// analysis get the default weight set, marked source=default.
func (s *apiServer) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	entry, err := s.weights.Entry(r.Context(), tenantID)
	if err != nil {
		s.logger.Error("load weights failed", zap.String("tenant_id", tenantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "load weights failed")
		return
	}

	resp := weightsResponse{
		TenantID: tenantID,
		Source:   weights.SourceDefault,
		Weights:  model.DefaultWeights(),
	}
	if entry != nil {
		resp.Source = weights.SourceLearned
		resp.Weights = entry.Weights
		resp.SampleSize = entry.SampleSize
		resp.Confidence = entry.Confidence
		resp.UpdatedAt = &entry.UpdatedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePatternHealth(w http.ResponseWriter, r *http.Request) {
	findings, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.logger.Error("health scan failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "health scan failed")
		return
	}
	if findings == nil {
		findings = []health.Finding{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(findings),
		"findings": findings,
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		TenantID: q.Get("tenant_id"),
		Status:   model.RunStatus(q.Get("status")),
		Trigger:  model.RunTrigger(q.Get("trigger")),
		Limit:    50,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []*model.LearningRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleTriggerLearn kicks off a learning run. An empty body or an empty
// tenant_id means every active tenant. The ticker backend runs inline and
// returns the terminal outcome; the Temporal backend returns immediately
// with the workflow and run IDs still in the running state.
func (s *apiServer) handleTriggerLearn(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "learning is not configured")
		return
	}

	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := s.runner.TriggerNow(r.Context(), scheduler.JobLearn, req.TenantID)
	if err != nil {
		s.logger.Error("learn trigger failed", zap.String("tenant_id", req.TenantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "learning run failed")
		return
	}
	respondJSON(w, http.StatusAccepted, out)
}

func (s *apiServer) handleTriggerBackfill(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "learning is not configured")
		return
	}

	tenantID := chi.URLParam(r, "tenantID")
	out, err := s.runner.TriggerNow(r.Context(), scheduler.JobBackfill, tenantID)
	if err != nil {
		s.logger.Error("backfill trigger failed", zap.String("tenant_id", tenantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "backfill failed")
		return
	}
	respondJSON(w, http.StatusAccepted, out)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
