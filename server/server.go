package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"erisextract/internal/config"
	"erisextract/pipeline"
	"erisextract/server/middleware"
)

// RunFunc runs one extraction. Everything the run logs goes to logger.
type RunFunc func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error)

// PingFunc checks the store is reachable.
type PingFunc func(ctx context.Context) error

// Server exposes the extraction trigger over HTTP.
type Server struct {
	config *config.Config
	run    RunFunc
	ping   PingFunc
	base   *slog.Logger
	logger *slog.Logger

	limiter *rate.Limiter
	running atomic.Bool

	handlerOnce sync.Once
	httpHandler http.Handler
	httpServer  *http.Server
}

// NewServer creates a trigger server. ping may be nil.
func NewServer(cfg *config.Config, run RunFunc, ping PingFunc, logger *slog.Logger) *Server {
	perMin := cfg.TriggerRatePerMin
	if perMin < 1 {
		perMin = 1
	}
	return &Server{
		config:  cfg,
		run:     run,
		ping:    ping,
		base:    logger,
		logger:  logger.With("component", "server"),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
	}
}

// Running reports whether an extraction is in progress.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler().ServeHTTP(w, r)
}

func (s *Server) handler() http.Handler {
	s.handlerOnce.Do(func() {
		router := gin.New()
		router.Use(middleware.GinRequestIDMiddleware())
		router.Use(middleware.GinLoggerMiddleware(s.logger))
		router.Use(middleware.GinRecoveryMiddleware(s.logger))

		router.GET("/extract", s.handleExtract)
		router.GET("/health", s.handleHealth)

		s.httpHandler = router
	})
	return s.httpHandler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%s", s.config.Port),
		Handler:     s,
		ReadTimeout: 15 * time.Second,
		// a run may take up to the extract timeout
		WriteTimeout: s.config.ExtractTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[Start] Trigger server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("failed to start HTTP server on %s: %w", s.httpServer.Addr, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("[Shutdown] Initiating graceful shutdown")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("[Shutdown] Graceful shutdown completed")
	return nil
}
