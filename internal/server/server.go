// File: internal/server/server.go
// Package server exposes the search runner over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/config"
	"github.com/xkilldash9x/inmate-bot/internal/service"
)

// Searcher runs one search request to completion.
type Searcher interface {
	Run(ctx context.Context, req service.Request) service.Result
}

// Server hosts the HTTP search endpoint.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	handlers   *Handlers
	httpServer *http.Server
}

// New creates a server. Nothing listens until ListenAndServe or Serve.
func New(cfg config.ServerConfig, searcher Searcher, logger *zap.Logger) *Server {
	logger = logger.Named("server")
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: NewHandlers(logger, searcher),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// A run is bounded by the runner; the request gets the same budget.
	r.Use(middleware.Timeout(s.cfg.RunTimeout))

	s.handlers.RegisterRoutes(r)
	return r
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server starting.", zap.String("address", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until the server stops.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP server starting.", zap.String("address", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight runs until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down.")
	return s.httpServer.Shutdown(ctx)
}
