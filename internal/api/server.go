// internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	handler "github.com/newthinker/cyclewatch/internal/api/handler/api"
	"github.com/newthinker/cyclewatch/internal/api/job"
	"github.com/newthinker/cyclewatch/internal/api/middleware"
	"github.com/newthinker/cyclewatch/internal/app"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for cyclewatch
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string // empty disables /metrics
	Version     string
	RunTimeout  time.Duration
}

// NewServer creates a new HTTP server. reg may be nil when metrics are
// disabled.
func NewServer(cfg Config, application *app.App, reg *metrics.Registry, logger *zap.Logger) (*Server, error) {
	if application == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "server needs an app")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	var h http.Handler = mux
	if reg != nil {
		h = metrics.HTTPMiddleware(reg)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute, // advice generation can be slow
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, application, reg)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, application *app.App, reg *metrics.Registry) {
	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(pattern string, fn http.HandlerFunc) {
		s.mux.Handle(pattern, auth(fn))
	}

	status := handler.NewStatusHandler(application, cfg.Version)
	analysis := handler.NewAnalysisHandler(application)
	reports := handler.NewReportsHandler(application.Store())
	runs := handler.NewRunsHandler(job.NewStore(100, 24*time.Hour), application, cfg.RunTimeout, s.logger)

	s.mux.HandleFunc("GET /api/v1/health", status.Health)
	protect("GET /api/v1/status", status.Status)

	protect("GET /api/v1/analysis", analysis.Get)
	protect("POST /api/v1/analysis", analysis.Create)

	protect("GET /api/v1/reports/{asset}", reports.List)
	protect("GET /api/v1/reports/{asset}/latest", reports.Latest)
	protect("GET /api/v1/reports/{asset}/{date}", reports.Get)

	protect("POST /api/v1/runs", runs.Create)
	protect("GET /api/v1/runs", runs.List)
	protect("GET /api/v1/runs/{id}", runs.Get)

	if reg != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
