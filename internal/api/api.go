// Package api serves read-only session state over HTTP: queue status,
// the per-file overview, ranked groups, and a websocket that pushes a
// fresh status after every mutation.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sprite-ai/revq/internal/engine"
)

// Server exposes one live review session.
type Server struct {
	addr    string
	session *engine.Session
	log     *slog.Logger
	mux     *http.ServeMux
	server  *http.Server
}

// New builds the server over a session.
func New(addr string, s *engine.Session, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{addr: addr, session: s, log: log}
	srv.mux = http.NewServeMux()
	srv.registerRoutes()
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/overview", s.handleOverview)
	s.mux.HandleFunc("GET /api/groups", s.handleGroups)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log.Info("status server listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Error("json encode", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
