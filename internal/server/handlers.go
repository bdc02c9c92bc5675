package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coachly/internal/core"
	"coachly/internal/digest"
	"coachly/internal/insights"
	"coachly/internal/query"
	"coachly/internal/store"
)

// HealthResponse reports service and backing-store health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// GenerateDigestRequest is the body for POST /api/digests/generate.
type GenerateDigestRequest struct {
	UserID        string `json:"user_id"`
	Date          string `json:"date,omitempty"`
	MaxInsights   int    `json:"max_insights,omitempty"`
	ForceRefresh  bool   `json:"force_refresh,omitempty"`
	ExplicitQuery string `json:"query,omitempty"`
}

// FeedbackRequest is the body for POST /api/feedback.
type FeedbackRequest struct {
	InsightID string `json:"insight_id"`
	Type      string `json:"type"`
	Comment   string `json:"comment,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleGenerateDigest(w http.ResponseWriter, r *http.Request) {
	var req GenerateDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = s.config.App.DefaultUserID
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := s.generator.Generate(r.Context(), digest.Request{
		UserID:        req.UserID,
		Date:          req.Date,
		MaxInsights:   req.MaxInsights,
		ForceRefresh:  req.ForceRefresh,
		ExplicitQuery: req.ExplicitQuery,
	})
	if err != nil {
		s.log.Error("Digest generation failed", "error", err, "user_id", req.UserID)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate digest")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDigests(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.config.App.DefaultUserID
	}
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	digests, err := s.digests.List(r.Context(), userID,
		r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		s.log.Error("Failed to list digests", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load digests")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"digests": digests,
		"total":   len(digests),
	})
}

func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.config.App.DefaultUserID
	}
	date := chi.URLParam(r, "date")

	result, err := s.digests.Get(r.Context(), userID, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Digest not found")
			return
		}
		s.log.Error("Failed to load digest", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load digest")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDigestByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.digests.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Digest not found")
			return
		}
		s.log.Error("Failed to load digest by id", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load digest")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteDigest(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.config.App.DefaultUserID
	}
	date := chi.URLParam(r, "date")

	if err := s.digests.Delete(r.Context(), userID, date); err != nil {
		s.log.Error("Failed to delete digest", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete digest")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	searchQuery := q.Get("q")
	if searchQuery == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	userID := q.Get("user_id")
	if userID == "" {
		userID = s.config.App.DefaultUserID
	}

	limit := 10
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	req := insights.SearchRequest{
		UserID:    userID,
		Query:     searchQuery,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Limit:     limit,
	}
	if raw := q.Get("min_feedback"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "min_feedback must be an integer")
			return
		}
		req.FilterByFeedback = true
		req.MinFeedbackScore = parsed
	}

	results, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.log.Error("Insight search failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleQuerySuggestions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.config.App.DefaultUserID
	}

	learningCtx := core.DefaultLearningContext()
	if stored, err := s.profiles.GetLearningContext(r.Context(), userID); err == nil {
		learningCtx = *stored
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Error("Failed to load learning context", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": query.Suggestions(learningCtx),
	})
}

func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.InsightID == "" || req.Type == "" {
		s.respondError(w, http.StatusBadRequest, "insight_id and type are required")
		return
	}

	feedback := &core.Feedback{
		InsightID: req.InsightID,
		Type:      req.Type,
		Comment:   req.Comment,
	}
	if err := s.search.RecordFeedback(r.Context(), feedback); err != nil {
		s.log.Error("Failed to record feedback", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}

	s.respondJSON(w, http.StatusCreated, feedback)
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
