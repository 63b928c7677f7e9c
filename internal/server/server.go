// Package server assembles the HTTP surface: the agent gateways, the session
// API, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimcheck/internal/gateway"
	"github.com/ppiankov/claimcheck/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the router
type Options struct {
	Gateways []*gateway.Gateway

	// Sessions, when set, mounts the session API
	Sessions *session.Controller

	// Debug enables gin's request logging
	Debug bool

	Logger *slog.Logger
}

// NewRouter builds the gin engine
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Debug {
		r.Use(gin.Logger())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway.Register(r, opts.Gateways...)

	if opts.Sessions != nil {
		h := NewSessionHandler(opts.Sessions, opts.Logger)
		api := r.Group("/api/sessions")
		api.POST("", h.Create)
		api.GET("/:id", h.Get)
		api.PUT("/:id", h.Resubmit)
		api.DELETE("/:id", h.Delete)
		api.POST("/:id/claims/:claimId/check", h.CheckClaim)
		api.POST("/:id/summary", h.Summarize)
	}

	return r
}

// Server is an HTTP server with graceful shutdown
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New creates a server for handler
func New(handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
