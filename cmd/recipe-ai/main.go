package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/recipe-ai/internal/api"
	"github.com/raaihank/recipe-ai/internal/cache"
	"github.com/raaihank/recipe-ai/internal/config"
	"github.com/raaihank/recipe-ai/internal/embeddings"
	"github.com/raaihank/recipe-ai/internal/events"
	"github.com/raaihank/recipe-ai/internal/ingredients"
	"github.com/raaihank/recipe-ai/internal/logger"
	"github.com/raaihank/recipe-ai/internal/vector"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("recipe-ai %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting recipe-ai",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Store.Environment),
	)

	if err := run(cfg, log); err != nil {
		log.Error("recipe-ai stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Embedding cache is optional; the service works without it
	var embeddingCache embeddings.Cache
	if cfg.Cache.Enabled {
		c, err := cache.NewEmbeddingCache(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer c.Close()
			embeddingCache = c
		}
	}

	provider, err := embeddings.NewProvider(&cfg.Embedding, embeddingCache, log.WithComponent("embeddings").Logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	backend, err := vector.NewBackend(ctx, cfg.Store.VectorConfig(), log.WithComponent("vector").Logger)
	if err != nil {
		return fmt.Errorf("failed to create vector backend: %w", err)
	}
	defer backend.Close()

	service := ingredients.New(provider, backend, ingredients.Options{
		Collection:       cfg.Store.CollectionName(),
		QueryPrefix:      cfg.Embedding.QueryPrefix,
		BatchConcurrency: cfg.Embedding.BatchConcurrency,
	}, log.WithComponent("ingredients").Logger)

	// Change feed for dashboard listeners
	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub(&cfg.Events, log.WithComponent("events").Logger)
		service.SetNotifier(hub)
		go hub.Run(ctx)
	}

	// Fail fast if the collection cannot be opened
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err = service.Initialize(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	server := api.New(cfg, service, hub, log, version)

	// Hot reload: only the log level is applied without restart
	if err := config.Watch(func(newCfg *config.Config) {
		if newCfg.Logging.Level == log.Level() {
			return
		}
		if err := log.SetLevel(newCfg.Logging.Level); err != nil {
			log.Warn("Failed to apply log level", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded", zap.String("log_level", newCfg.Logging.Level))
	}, func(err error) {
		log.Warn("Ignoring invalid configuration change", zap.Error(err))
	}); err != nil {
		log.Debug("Configuration watch disabled", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
	}

	log.Info("Server shutdown complete")
	return nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
