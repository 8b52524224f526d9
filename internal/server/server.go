package server

// Package server exposes the query orchestrator over HTTP.
//
// Responsibilities:
//   - POST /api/v1/query: run one workflow turn
//   - GET  /api/v1/trace: read the provenance trace for a trace id
//   - GET  /api/v1/trace/stream: live provenance stream over websocket
//   - POST /api/v1/reset: clear session and trace state
//   - /health, /ready, /info, /metrics: operational endpoints

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/config"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/internal/workflow"
)

const version = "0.1.0"

// Server hosts the HTTP surface around a workflow strategy.
type Server struct {
	cfg      *config.Config
	strategy workflow.Strategy
	sessions session.Store
	recorder trace.Recorder
	logger   *zap.Logger

	httpServer *http.Server
	limiter    *rateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

// NewServer wires the HTTP surface. All components are constructed by
// the caller and passed by reference.
func NewServer(cfg *config.Config, strategy workflow.Strategy, sessions session.Store, recorder trace.Recorder, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if strategy == nil {
		return nil, fmt.Errorf("workflow strategy cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:      cfg,
		strategy: strategy,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		srv.limiter = newRateLimiter(cfg.Server.RateLimitPerMinute)
	}
	return srv, nil
}

// Start begins serving. It returns once the listener goroutine is
// running.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http server listening",
			zap.String("addr", s.httpServer.Addr),
			zap.String("mode", s.strategy.Mode()))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully drains connections and stops background work.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown error", zap.Error(err))
		}
	}

	s.cancel()
	if s.limiter != nil {
		s.limiter.stop()
	}
	s.wg.Wait()

	s.logger.Info("server stopped")
	return nil
}

// Wait blocks until the server is stopped.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/info", s.handleInfo)
	mux.Handle("/metrics", promhttp.Handler())

	query := s.handleQuery
	if s.limiter != nil {
		query = s.limiter.wrap(query)
	}
	mux.HandleFunc("/api/v1/query", query)
	mux.HandleFunc("/api/v1/trace", s.handleTrace)
	mux.HandleFunc("/api/v1/trace/stream", s.handleTraceStream)
	mux.HandleFunc("/api/v1/reset", s.handleReset)
}
