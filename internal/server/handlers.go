package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"newsdesk/internal/core"
)

const defaultHighlightLimit = 20

// ExtractRequest triggers background extraction runs.
type ExtractRequest struct {
	Categories   []string `json:"categories,omitempty"`
	ForceRefresh bool     `json:"force_refresh"`
}

// ExtractResponse acknowledges an accepted extraction submission.
type ExtractResponse struct {
	Status     string   `json:"status"`
	Categories []string `json:"categories"`
}

// ChatRequest carries a user question.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the bot's reply.
type ChatResponse struct {
	Message   string `json:"message"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is the poll-able system status.
type StatusResponse struct {
	Status             string           `json:"status"`
	Runs               []core.RunStatus `json:"runs"`
	ArticlesCount      int              `json:"articles_count"`
	HighlightsCount    int              `json:"highlights_count"`
	ArticlesByCategory map[string]int   `json:"articles_by_category"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy", "database": "error",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	articles, highlights, byCategory, err := s.store.Counts(r.Context())
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	s.respondJSON(w, http.StatusOK, StatusResponse{
		Status:             "operational",
		Runs:               s.runner.Status(),
		ArticlesCount:      articles,
		HighlightsCount:    highlights,
		ArticlesByCategory: byCategory,
	})
}

// handleExtract handles POST /api/extract. Runs execute in the background;
// the response is an immediate 202 with the accepted categories.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Background runs outlive the request; they get their own context.
	categories, err := s.runner.Submit(context.WithoutCancel(r.Context()), req.Categories, req.ForceRefresh)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to submit extraction")
		return
	}

	s.respondJSON(w, http.StatusAccepted, ExtractResponse{
		Status:     "accepted",
		Categories: categories,
	})
}

// handleHighlights handles GET /api/highlights
func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	limit := defaultHighlightLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	highlights, err := s.store.ListHighlights(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if highlights == nil {
		highlights = []core.Highlight{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"highlights": highlights})
}

// handleArticles handles GET /api/articles
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.GetArticles(r.Context(), r.URL.Query().Get("category"), time.Time{})
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if articles == nil {
		articles = []core.Article{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"articles": articles})
}

// handleChat handles POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.bot.Answer(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			s.respondError(w, http.StatusBadRequest, "message must not be empty")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to answer")
		return
	}

	s.respondJSON(w, http.StatusOK, ChatResponse{
		Message:   req.Message,
		Response:  answer,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode response", "error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
