// Package api is the thin HTTP front end exposing the operational
// health surface spec.md §7 requires: process-wide liveness and the
// per-program health snapshot. It keeps the teacher's
// internal/api/server.go shape — a http.ServeMux wrapped in logging and
// recovery middleware — dropped down from the teacher's job-submission
// API to a read-only status surface, since business queries are
// explicitly out of scope.
package api

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"solana-event-core/internal/health"
)

// Source supplies the data the health handlers render. health.Registry
// satisfies it directly (the listener process's in-memory view); the
// standalone API process satisfies it with a store-backed adapter, so
// /health/{program} still answers when the listener isn't running.
type Source interface {
	Snapshot(programID string) (health.Snapshot, bool)
	Programs() []string
}

// Server serves the process's health endpoints.
type Server struct {
	mux    *http.ServeMux
	source Source
	log    *logrus.Entry
}

// NewServer builds a Server reading from source.
func NewServer(source Source, log *logrus.Entry) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		source: source,
		log:    log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/health/", s.handleProgramHealth)
}

// Run starts the HTTP server on the given port, blocking until
// http.ListenAndServe returns an error. Server has no Shutdown method.
func (s *Server) Run(port string) error {
	addr := fmt.Sprintf(":%s", port)
	handler := s.recoveryMiddleware(s.loggingMiddleware(s.mux))
	s.log.WithField("addr", addr).Info("health API listening")
	return http.ListenAndServe(addr, handler)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithField("method", r.Method).WithField("path", r.URL.Path).Debug("http request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.WithField("panic", rec).Error("recovered from panic in http handler")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
