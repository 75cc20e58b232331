package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

type resolveRequest struct {
	Domain      string `json:"domain"`
	HTMLSample  string `json:"html_sample,omitempty"`
	ForceStatic bool   `json:"force_static,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" {
		s.respondWithError(w, http.StatusBadRequest, "domain is required")
		return
	}

	res, err := s.pipeline.Resolve(r.Context(), req.Domain, req.HTMLSample, req.ForceStatic)
	if err != nil {
		zap.L().Error("resolve failed", zap.String("domain", req.Domain), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not resolve selectors")
		return
	}

	s.respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidationReport(w http.ResponseWriter, r *http.Request) {
	var report model.ValidationReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if report.Domain == "" {
		s.respondWithError(w, http.StatusBadRequest, "domain is required")
		return
	}

	if err := s.pipeline.ReportValidation(r.Context(), report); err != nil {
		zap.L().Error("validation report failed", zap.String("domain", report.Domain), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not record validation report")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.CacheStats(r.Context())
	if err != nil {
		zap.L().Error("cache stats failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not read cache stats")
		return
	}
	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ClearCache(r.Context()); err != nil {
		zap.L().Error("cache clear failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not clear cache")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The cache is the only backing dependency; a stats read doubles as a
	// liveness probe for it.
	if _, err := s.pipeline.CacheStats(r.Context()); err != nil {
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"cache": "unhealthy"})
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"cache": "healthy"})
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
