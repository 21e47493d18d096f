// Package api exposes the read-only HTTP interface over the match
// registry and snapshot store.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/metrics"
	"github.com/crickstats/cricsync/internal/scrape"
)

// Server wires HTTP handlers to the store.
type Server struct {
	router chi.Router
	store  scrape.Store
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store scrape.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.Route("/{match_id}", func(r chi.Router) {
				r.Get("/", s.getMatch)
				r.Route("/{section}", func(r chi.Router) {
					r.Get("/", s.getSection)
					r.Get("/history", s.getSectionHistory)
				})
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; one cheap query proves it.
	if _, err := s.store.ListMatches(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.store.ListMatches(r.Context())
	if err != nil {
		s.logger.Error("list matches failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches}, s.logger)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	m, err := s.store.GetMatch(r.Context(), matchID)
	if err != nil {
		s.logger.Error("get match failed", zap.String("match_id", matchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error", s.logger)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "match not found", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, m, s.logger)
}

func (s *Server) getSection(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	section := scrape.Section(chi.URLParam(r, "section"))
	if !section.Valid() {
		writeError(w, http.StatusBadRequest, "unknown section", s.logger)
		return
	}
	doc, err := s.store.Document(r.Context(), matchID, section)
	if err != nil {
		s.logger.Error("get section failed",
			zap.String("match_id", matchID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", s.logger)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "no snapshot for section", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, doc, s.logger)
}

func (s *Server) getSectionHistory(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")
	section := scrape.Section(chi.URLParam(r, "section"))
	if !section.Valid() {
		writeError(w, http.StatusBadRequest, "unknown section", s.logger)
		return
	}
	if !section.HasHistory() {
		writeError(w, http.StatusBadRequest, "section keeps no history", s.logger)
		return
	}
	history, err := s.store.History(r.Context(), matchID, section)
	if err != nil {
		s.logger.Error("get history failed",
			zap.String("match_id", matchID),
			zap.String("section", string(section)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history}, s.logger)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
