// Package api serves repochat over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"repochat/internal/config"
	"repochat/internal/engine"
)

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	addr    string
	logger  *slog.Logger
	engine  *engine.Engine
	metrics *MetricsCollector
}

// NewServer creates a new HTTP server instance
func NewServer(cfg config.ServerConfig, eng *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{
		addr:    cfg.Addr(),
		logger:  logger,
		engine:  eng,
		metrics: NewMetricsCollector(),
		router:  http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.applyMiddleware(s.router, cfg.CorsOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler, corsOrigin string) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger, s.metrics)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware(corsOrigin)(handler)
	return handler
}
