// Package web serves health reports over HTTP.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/jandubois/healthmon/internal/batch"
	"github.com/jandubois/healthmon/internal/config"
)

// Server runs the configured batch on demand and serves its report.
type Server struct {
	batch  *batch.Batch
	config *config.ServeConfig
	server *http.Server
	logger *slog.Logger
	now    func() time.Time

	runs   singleflight.Group
	mu     sync.Mutex
	cached *batch.Report
	at     time.Time
}

// NewServer creates a new web server.
func NewServer(b *batch.Batch, cfg *config.ServeConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		batch:  b,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the web server and shuts it down when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Routes returns the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Health check (no auth)
	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/checks", s.handleListChecks)
		r.Get("/api/report", s.handleReport)
		r.Get("/metrics", s.handleMetrics)
	})
	return r
}

// report returns the cached report while it is younger than the cache TTL
// and runs the batch otherwise. Concurrent callers share one run.
func (s *Server) report(ctx context.Context) (*batch.Report, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.at) < s.config.CacheTTL.Duration {
		rep := s.cached
		s.mu.Unlock()
		return rep, nil
	}
	s.mu.Unlock()

	v, err, _ := s.runs.Do("report", func() (any, error) {
		// The run outlives any single request.
		rep, err := s.batch.Run(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached, s.at = rep, s.now()
		s.mu.Unlock()
		return rep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*batch.Report), nil
}
