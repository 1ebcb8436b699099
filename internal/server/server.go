// Package server exposes the blog runner over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/ingest"
	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
)

// Runs is the part of the runner the API drives.
type Runs interface {
	Start(ctx context.Context, sources []model.SourceContent, cfg model.BlogConfig) (string, error)
	StartAsync(ctx context.Context, sources []model.SourceContent, cfg model.BlogConfig) (string, <-chan error, error)
	ResumeOutline(ctx context.Context, runID string, review model.OutlineReview) error
	ResumeOutlineAsync(ctx context.Context, runID string, review model.OutlineReview) (<-chan error, error)
	ResumePublish(ctx context.Context, runID string, review model.PublishReview) error
	ResumePublishAsync(ctx context.Context, runID string, review model.PublishReview) (<-chan error, error)
	Retry(ctx context.Context, runID string) error
	RetryAsync(ctx context.Context, runID string) (<-chan error, error)
	GetStatus(ctx context.Context, runID string) (*runner.Status, error)
	GetState(ctx context.Context, runID string) (*model.PipelineState, error)
	List(ctx context.Context, filter store.CheckpointFilter) ([]runner.Status, error)
	Delete(ctx context.Context, runID string) error
}

// Ingester turns source locators into source content.
type Ingester interface {
	IngestAll(ctx context.Context, locs []ingest.Locator) ([]model.SourceContent, error)
}

// Options configures a Server.
type Options struct {
	// Password enables bearer authentication on /api when set.
	Password    string
	CORSOrigins []string
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Ingester resolves the locators of a start request. Nil rejects them.
	Ingester Ingester
	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// Server serves the run API.
type Server struct {
	runs Runs
	opts Options
}

// New creates a Server over runs.
func New(runs Runs, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{runs: runs, opts: opts}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/runs", func(r chi.Router) {
		r.Use(bearerAuth(s.opts.Password))
		r.Post("/", s.handleStart)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Delete("/", s.handleDelete)
			r.Get("/state", s.handleState)
			r.Post("/outline-decision", s.handleOutlineDecision)
			r.Post("/publish-decision", s.handlePublishDecision)
			r.Post("/retry", s.handleRetry)
		})
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
