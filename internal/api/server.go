// Package api serves the local HTTP endpoint callback producers use to
// register and send records, and operators use to inspect the subsystem.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/crashguard/internal/agent"
	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

// Backend is the subsystem surface the server exposes.
type Backend interface {
	Register() config.Registration
	Registration() config.Registration
	Ingest(raw []byte) bool
	Snapshot() []trace.Entry
	Resize(capacity int) bool
	WatchdogStatus() agent.WatchdogStatus
}

// Server provides the HTTP endpoints.
type Server struct {
	router  chi.Router
	backend Backend
	logger  *slog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new API server.
func NewServer(backend Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(s.loggingMiddleware)

	// Browser-based dashboards on the same host read the callback history.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/registration", s.handleGetRegistration)
		r.Post("/registration", s.handleRegister)

		r.Route("/callbacks", func(r chi.Router) {
			r.Get("/", s.handleListCallbacks)
			r.Post("/", s.handleIngest)
			r.Post("/resize", s.handleResize)
		})

		r.Get("/watchdog", s.handleWatchdog)
	})

	return r
}

// loggingMiddleware logs HTTP requests. Ingest is called at frame rate, so
// requests are logged at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// It returns nil after a graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
