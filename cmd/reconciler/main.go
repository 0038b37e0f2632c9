package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/cache"
	"github.com/instalens/instalens/internal/db"
	"github.com/instalens/instalens/internal/engine"
	"github.com/instalens/instalens/internal/poller"
	"github.com/instalens/instalens/internal/reconciler"
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
	logger.Info("Starting InstaLens Run Reconciler")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to the database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Redis is optional
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

	// The reconciler drives orphaned runs through the same engine path
	// the API uses, so transitions and cache invalidation stay in one
	// place. Its own per-run watches are disabled; the sweep loop is
	// the schedule here.
	jobStore := store.NewGormStore(db.NewRepository(database.DB))
	eng := engine.New(jobStore, runner, redisCache, engine.Options{
		Poll:     poller.Options{Enabled: false},
		CacheTTL: cfg.Analytics.CacheTTL,
		TopTags:  cfg.Analytics.TopTags,
	})
	defer eng.Close()

	sweeper := reconciler.New(jobStore, eng, cfg.Poller.Interval*10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconciler...")
	cancel()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Reconciler stopped with error", zap.Error(err))
	}
	logger.Info("Reconciler exited")
}
