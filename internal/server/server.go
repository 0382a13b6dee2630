// Package server implements the reference sync server (spec.md §6):
// the three wire endpoints the sync engine talks to, bearer-token
// auth, and per-profile storage via internal/serverdb.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/autonome/peek/internal/serverdb"
)

// Server is the HTTP API server for peek-sync.
type Server struct {
	config Config
	http   *http.Server
	pool   *serverdb.Pool
}

// NewServer creates a new Server with the given config.
func NewServer(cfg Config) *Server {
	s := &Server{
		config: cfg,
		pool:   serverdb.NewPool(cfg.DataDir),
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and closes all profile databases.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.pool.CloseAll()
	return err
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /items", s.requireAuth(s.handleGetItems))
	mux.HandleFunc("GET /items/since/{since}", s.requireAuth(s.handleGetItemsSince))
	mux.HandleFunc("POST /items", s.requireAuth(s.handlePushItem))

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, loggingMiddleware, versionCheckMiddleware, maxBytesMiddleware(5<<20))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
