// Package httpserver provides the HTTP JSON API over the editorial workflow engines.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/dashboard"
	"github.com/helixir/editorial-workflow-service/internal/database"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/identity"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// SubmissionLister executes collector queries. collector.Runner implements it.
type SubmissionLister interface {
	Count(ctx context.Context, q *collector.Query) (int64, error)
	Submissions(ctx context.Context, q *collector.Query) iter.Seq2[*domain.Submission, error]
}

// Dashboards resolves dashboard views. dashboard.Dashboard implements it.
type Dashboards interface {
	Views(ctx context.Context, userID, contextID int64) ([]dashboard.Summary, error)
	Collector(ctx context.Context, id dashboard.ViewID, userID, contextID int64) (*collector.Collector, error)
}

// Deps are the engines and collaborators the handlers call.
type Deps struct {
	Intake    *workflow.Intake
	Versions  *workflow.Versioning
	Review    *workflow.Review
	Files     *workflow.Files
	Genres    *workflow.Genres
	Lister    SubmissionLister
	Dashboard Dashboards
	Directory identity.Directory
	Locales   *locale.Resolver
	Health    HealthChecker
}

// Server is the HTTP JSON API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	deps           Deps
	maxUploadSize  int64
	logger         zerolog.Logger
	authMiddleware func(http.Handler) http.Handler
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxUploadSize   int64
}

// NewServer creates a new HTTP server. authMiddleware must attach the acting
// user to the request context (see BearerAuth and HeaderAuth).
func NewServer(cfg Config, deps Deps, logger zerolog.Logger, authMiddleware func(http.Handler) http.Handler) *Server {
	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadSize
	}
	s := &Server{
		deps:           deps,
		maxUploadSize:  maxUpload,
		logger:         logger.With().Str("component", "http-server").Logger(),
		authMiddleware: authMiddleware,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.localeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1/contexts/{contextID}", func(r chi.Router) {
		if s.authMiddleware != nil {
			r.Use(s.authMiddleware)
		}
		r.Use(requireUser)
		r.Use(contextMiddleware)

		r.Get("/dashboard", s.listDashboardViews)
		r.Get("/dashboard/{viewID}/submissions", s.listDashboardSubmissions)

		r.Get("/submissions", s.listSubmissions)
		r.Post("/submissions", s.createSubmission)
		r.Route("/submissions/{submissionID}", func(r chi.Router) {
			r.Use(s.submissionMiddleware)

			r.Get("/", s.getSubmission)
			r.Delete("/", s.deleteSubmission)
			r.Post("/finalize", s.finalizeSubmission)

			r.Get("/decisions", s.listDecisions)
			r.Post("/decisions", s.recordDecision)
			r.Get("/rounds", s.listRounds)

			r.Post("/publications", s.createVersion)
			r.Post("/publications/{publicationID}/publish", s.publish)
			r.Delete("/publications/{publicationID}/publish", s.unpublish)

			r.Get("/files", s.listFiles)
			r.Post("/files", s.uploadFile)
			r.Get("/files/{fileID}/revisions", s.listRevisions)
			r.Get("/files/{fileID}/revisions/{revisionID}/content", s.downloadRevision)
		})

		r.Get("/genres", s.listGenres)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.deps.Health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
