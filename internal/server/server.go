package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asksql/asksql/internal/handler"
	"github.com/asksql/asksql/internal/metrics"
	"github.com/asksql/asksql/internal/model"
	"github.com/asksql/asksql/internal/schema"
	"github.com/asksql/asksql/internal/server/middleware"
	"github.com/asksql/asksql/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RateLimit       int   // requests per minute per IP, 0 disables
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20, // 1MB
		RateLimit:       60,
	}
}

// Deps are the components the server exposes.
type Deps struct {
	Sessions     *session.Manager
	Tools        handler.SQLTools
	DatabasePath string
	Version      string
}

// Server is the top-level HTTP server for asksql. It owns the Chi router
// and the session manager's expiry loop.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5))

	// --- Probes and docs ---
	docs := handler.NewDocsHandler(s.deps.Version)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.json", docs.OpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))

		chat := handler.NewChatHandler(s.deps.Sessions, s.cfg.MaxBodySize, s.logger)
		sql := handler.NewSQLHandler(s.deps.Tools, s.cfg.MaxBodySize, s.logger)

		r.Get("/examples", docs.Examples)
		r.Get("/schema", docs.Schema)

		r.Post("/chat", chat.Chat)
		r.Post("/sessions", chat.CreateSession)
		r.Get("/sessions/{id}", chat.GetSession)
		r.Delete("/sessions/{id}", chat.DeleteSession)

		r.Post("/sql/generate", sql.Generate)
		r.Post("/sql/execute", sql.Execute)
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the company database
// exists and has every described table and column, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := model.StatusResponse{Status: "ok", Checks: map[string]string{}}
	httpStatus := http.StatusOK

	report, err := schema.VerifyFile(r.Context(), s.deps.DatabasePath)
	switch {
	case errors.Is(err, schema.ErrDatabaseMissing):
		resp.Checks["database"] = "error: " + err.Error()
	case err != nil:
		resp.Checks["database"] = "ok"
		resp.Checks["schema"] = "error: " + err.Error()
	case !report.OK():
		resp.Checks["database"] = "ok"
		resp.Checks["schema"] = "error: " + strings.Join(report.Problems(), "; ")
	default:
		resp.Checks["database"] = "ok"
		resp.Checks["schema"] = "ok"
	}
	if resp.Checks["schema"] != "ok" {
		resp.Status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received or ctx is cancelled. It then performs a graceful shutdown,
// draining in-flight requests before stopping session expiry.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.deps.Sessions.Start()
	defer s.deps.Sessions.Stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped", "sessions", s.deps.Sessions.Len())
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
