package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/recipe-ai/internal/config"
	"github.com/raaihank/recipe-ai/internal/events"
	"github.com/raaihank/recipe-ai/internal/logger"
	"github.com/raaihank/recipe-ai/internal/web"
)

// Server exposes the ingredient service over HTTP
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	service IngredientService
	hub     *events.Hub
	limiter *RateLimiter
	router  *mux.Router
	server  *http.Server
	version string
	cancel  context.CancelFunc
}

// New creates a new API server instance. hub may be nil when the change feed is disabled.
func New(cfg *config.Config, service IngredientService, hub *events.Hub, log *logger.Logger, version string) *Server {
	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("api"),
		service: service,
		hub:     hub,
		limiter: NewRateLimiter(&cfg.RateLimit),
		router:  mux.NewRouter(),
		version: version,
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods(http.MethodGet)

	// Change feed for the dashboard and other listeners
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	ingredientsRouter := s.router.PathPrefix("/ingredients").Subrouter()
	ingredientsRouter.Use(s.rateLimitMiddleware)
	ingredientsRouter.HandleFunc("", s.handleAddIngredient).Methods(http.MethodPost)
	ingredientsRouter.HandleFunc("", s.handleDeleteIngredients).Methods(http.MethodDelete)
	ingredientsRouter.HandleFunc("/batch", s.handleAddIngredientsBatch).Methods(http.MethodPost)
	ingredientsRouter.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting recipe-ai API server",
		zap.Int("port", s.config.Server.Port),
		zap.String("collection", s.config.Store.CollectionName()),
		zap.String("backend", s.config.Store.Backend),
		zap.String("embedding_provider", s.config.Embedding.Provider),
		zap.Bool("events_enabled", s.hub != nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.limiter.StartCleanupRoutine(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping recipe-ai API server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}
