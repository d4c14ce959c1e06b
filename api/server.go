// Package api provides the HTTP REST API for Voyago.
//
// Endpoints:
//
//	POST /api/chat               - ask the travel assistant
//	POST /api/knowledge/refresh  - trigger a knowledge refresh
//	GET  /api/knowledge/stats    - knowledge base statistics
//	GET  /api/sitemap            - current content pages
//	GET  /health                 - liveness probe
//	GET  /ready                  - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging, rate limiting)
//   - ratelimit.go: per-IP token bucket rate limiter
//   - health.go: health check endpoints
//   - chat.go: chat endpoint
//   - knowledge.go: refresh, stats and sitemap endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/sitemap"
	"github.com/voyago/voyago/internal/vectorstore"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Chat responses wait on the model, so this is generous.
	WriteTimeout = 90 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Options configures optional server behavior.
type Options struct {
	// RatePerSecond and RateBurst configure per-IP rate limiting.
	// A non-positive rate disables the limiter.
	RatePerSecond float64
	RateBurst     int

	// TrustProxy enables X-Real-IP / X-Forwarded-For for client IPs.
	TrustProxy bool
}

// Server is the HTTP server for Voyago's REST API.
type Server struct {
	mux     *http.ServeMux
	limiter *rateLimiter
	opts    Options
	logger  log.Logger

	// Handlers
	health    *HealthHandler
	chat      *ChatHandler
	knowledge *KnowledgeHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(pipeline *knowledge.Pipeline, store *vectorstore.Store, source sitemap.Source, opts Options, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		opts:      opts,
		logger:    logger,
		health:    NewHealthHandler(pipeline, logger),
		chat:      NewChatHandler(pipeline, logger),
		knowledge: NewKnowledgeHandler(pipeline, store, source, logger),
	}

	if opts.RatePerSecond > 0 {
		s.limiter = newRateLimiter(opts.RatePerSecond, opts.RateBurst)
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.knowledge.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → handler
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, rateLimitMiddleware(s.limiter, s.opts.TrustProxy, s.logger))
	}
	return chain(s.mux, middlewares...)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
