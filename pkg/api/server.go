// Package api serves indexed contract creations over REST, GraphQL and
// WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/api/graphql"
	apimiddleware "github.com/0xmhha/creation-indexer/pkg/api/middleware"
	"github.com/0xmhha/creation-indexer/pkg/api/websocket"
	"github.com/0xmhha/creation-indexer/pkg/multichain"
	"github.com/0xmhha/creation-indexer/pkg/storage"
)

// HealthChecker reports per-chain health. *multichain.Manager implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]multichain.HealthStatus
}

// ServerOptions contains optional collaborators
type ServerOptions struct {
	Health HealthChecker

	// Hub is required when WebSocket is enabled. Its Run loop is owned by
	// the caller so the same hub can be registered as a sink.
	Hub *websocket.Hub
}

// Server represents the API server
type Server struct {
	config  *Config
	logger  *zap.Logger
	storage storage.Storage
	health  HealthChecker
	hub     *websocket.Hub
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(config *Config, logger *zap.Logger, store storage.Storage, opts *ServerOptions) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  config,
		logger:  logger.Named("api"),
		storage: store,
		router:  chi.NewRouter(),
	}
	if opts != nil {
		s.health = opts.Health
		s.hub = opts.Hub
	}
	if config.EnableWebSocket && s.hub == nil {
		return nil, errors.New("websocket enabled without a hub")
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(apimiddleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.Logger(s.logger))

	if s.config.EnableRateLimit {
		s.router.Use(apimiddleware.RateLimit(
			s.config.RateLimitPerSecond,
			s.config.RateLimitBurst,
			s.logger,
		))
		s.logger.Info("rate limiting enabled",
			zap.Float64("rate_per_second", s.config.RateLimitPerSecond),
			zap.Int("burst", s.config.RateLimitBurst),
		)
	}
}

func (s *Server) setupRoutes() error {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1/chains/{chainID}", func(r chi.Router) {
		r.Get("/contracts", s.handleContractsByRange)
		r.Get("/contracts/{id}", s.handleContract)
		r.Get("/coverage", s.handleCoverage)
	})

	if s.config.EnableGraphQL {
		h, err := graphql.NewHandler(s.storage, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create GraphQL handler: %w", err)
		}
		s.router.Handle(s.config.GraphQLPath, h)
		s.logger.Info("GraphQL API enabled", zap.String("path", s.config.GraphQLPath))
	}

	if s.config.EnableWebSocket {
		s.router.Get(s.config.WebSocketPath, websocket.NewServer(s.hub, s.logger).ServeHTTP)
		s.logger.Info("WebSocket API enabled", zap.String("path", s.config.WebSocketPath))
	}
	return nil
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Bool("graphql", s.config.EnableGraphQL),
		zap.Bool("websocket", s.config.EnableWebSocket),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
