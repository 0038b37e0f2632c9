package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/api"
	"github.com/instalens/instalens/internal/cache"
	"github.com/instalens/instalens/internal/db"
	"github.com/instalens/instalens/internal/engine"
	"github.com/instalens/instalens/internal/poller"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/internal/store"
	"github.com/instalens/instalens/pkg/config"
	"github.com/instalens/instalens/pkg/logging"
	"github.com/instalens/instalens/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting InstaLens API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to the database and migrate the schema
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// Redis is optional; a nil cache disables cached reads
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Scrape runner client
	runner, err := scraper.New(&cfg.Scraper)
	if err != nil {
		logger.Fatal("Failed to initialize scrape runner client", zap.Error(err))
	}

	// Orchestration engine over the database-backed store
	jobStore := store.NewGormStore(db.NewRepository(database.DB))
	eng := engine.New(jobStore, runner, redisCache, engine.Options{
		Poll: poller.Options{
			Interval:    cfg.Poller.Interval,
			MaxFailures: cfg.Poller.MaxFailures,
			Enabled:     true,
		},
		CacheTTL: cfg.Analytics.CacheTTL,
		TopTags:  cfg.Analytics.TopTags,
	})
	defer eng.Close()

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api.NewRouter(eng, redisCache).SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
