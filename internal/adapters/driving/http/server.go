package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// RefreshEvery and RefreshBurst bound manual refreshes (default: one per 30s)
	RefreshEvery time.Duration
	RefreshBurst int

	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		Version:      "dev",
		RefreshEvery: 30 * time.Second,
		RefreshBurst: 1,
	}
}

// Services are the driving ports the API exposes. Coordinator is nil on
// api-only instances, which serve the snapshot from the shared store.
type Services struct {
	Auth        driving.AuthService
	Snapshots   driving.SnapshotService
	Coordinator driving.CoordinatorService
	Calendar    driving.CalendarService
	Metrics     http.Handler
	Checks      map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	auth        driving.AuthService
	snapshots   driving.SnapshotService
	coordinator driving.CoordinatorService
	calendar    driving.CalendarService
	metrics     http.Handler
	checks      map[string]Pinger

	refreshLimiter *rate.Limiter
	now            func() time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	every := cfg.RefreshEvery
	if every <= 0 {
		every = 30 * time.Second
	}
	burst := cfg.RefreshBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		auth:           svc.Auth,
		snapshots:      svc.Snapshots,
		coordinator:    svc.Coordinator,
		calendar:       svc.Calendar,
		metrics:        svc.Metrics,
		checks:         svc.Checks,
		refreshLimiter: rate.NewLimiter(rate.Every(every), burst),
		now:            time.Now,
	}
	if s.snapshots == nil && s.coordinator != nil {
		s.snapshots = s.coordinator
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	viewer := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}

	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// Read endpoints (any authenticated role)
	s.router.Handle("GET /api/v1/snapshot", viewer(s.handleGetSnapshot))
	s.router.Handle("GET /api/v1/snapshot/stream", viewer(s.handleSnapshotStream))
	s.router.Handle("GET /api/v1/status", viewer(s.handleGetStatus))
	s.router.Handle("GET /api/v1/calendar", viewer(s.handleListCalendar))

	// Control endpoints (admin-only)
	s.router.Handle("POST /api/v1/refresh", admin(s.handleRefresh))
	s.router.Handle("POST /api/v1/consumption/backfill", admin(s.handleBackfill))
	s.router.Handle("DELETE /api/v1/tasks/{name}", admin(s.handleCancelTask))
}

// Handler returns the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// errCoordinatorUnavailable is reported by control endpoints on api-only instances.
var errCoordinatorUnavailable = fmt.Errorf("%w: coordinator does not run in this instance", domain.ErrServiceUnavailable)
