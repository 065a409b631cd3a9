package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
	"github.com/custodia-labs/reviewpulse/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errNotConfigured = errors.New("service not configured")

// synthesizeRequest is the body of POST /api/synthesize.
type synthesizeRequest struct {
	ThemeID string `json:"theme_id" validate:"required"`
}

// recomputeResponse is the body returned by a recompute.
type recomputeResponse struct {
	ManifestID string `json:"manifest_id"`
	Metrics    int    `json:"metrics"`
	Trends     int    `json:"trends"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req driving.RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	result, err := s.ports.Ingestion.Run(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if result.Themes == nil {
		result.Themes = []domain.ThemeDraft{}
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if s.ports.Actions == nil {
		s.respondError(w, fmt.Errorf("actions: %w: %w", errNotConfigured, domain.ErrLLMUnavailable))
		return
	}

	var req synthesizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	result, err := s.ports.Actions.SynthesizeTheme(r.Context(), req.ThemeID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListManifests(w http.ResponseWriter, r *http.Request) {
	if !s.requireInsights(w) {
		return
	}
	manifests, err := s.ports.Insights.ListManifests(r.Context(), r.URL.Query().Get("unit"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(manifests))
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	if !s.requireInsights(w) {
		return
	}
	themes, err := s.ports.Insights.ListThemes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(themes))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.requireInsights(w) {
		return
	}
	metrics, err := s.ports.Insights.Metrics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(metrics))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !s.requireInsights(w) {
		return
	}
	trends, err := s.ports.Insights.Trends(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(trends))
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if !s.requireInsights(w) {
		return
	}
	id := chi.URLParam(r, "id")
	metrics, trends, err := s.ports.Insights.Recompute(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recomputeResponse{ManifestID: id, Metrics: metrics, Trends: trends})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if s.ports.Actions == nil {
		s.respondError(w, fmt.Errorf("actions: %w: %w", errNotConfigured, domain.ErrLLMUnavailable))
		return
	}
	actions, err := s.ports.Actions.ListActions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(actions))
}

func (s *Server) requireInsights(w http.ResponseWriter) bool {
	if s.ports.Insights == nil {
		respondJSON(w, http.StatusServiceUnavailable, domain.RunError{
			Kind:    domain.ErrorKindUnavailable,
			Message: "insights: " + errNotConfigured.Error(),
		})
		return false
	}
	return true
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding request body: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
