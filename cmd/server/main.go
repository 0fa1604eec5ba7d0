package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/loopwire/webhook-service/internal/config"
	"github.com/loopwire/webhook-service/internal/domain/model"
	"github.com/loopwire/webhook-service/internal/domain/processor"
	"github.com/loopwire/webhook-service/internal/infrastructure/cache"
	"github.com/loopwire/webhook-service/internal/infrastructure/database"
	"github.com/loopwire/webhook-service/internal/infrastructure/dispatch"
	httpServer "github.com/loopwire/webhook-service/internal/infrastructure/http"
	"github.com/loopwire/webhook-service/internal/logger"
	"github.com/loopwire/webhook-service/internal/usecase"
	"github.com/loopwire/webhook-service/internal/worker"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Optional redis dedupe cache and alert channel
	dedupeCache := cache.Noop()
	if cfg.Redis.Addr != "" {
		dedupeCache, err = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.AlertChannel, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer dedupeCache.Close()
	}

	// Assemble the pipeline
	metrics := usecase.NewMetricsService(
		repos.Metric, repos.Alert, dedupeCache,
		cfg.Pipeline.MetricWindow,
		cfg.Pipeline.DuplicateStormThreshold,
		cfg.Pipeline.DuplicateStormWindow,
		zapLogger,
	)
	engine := usecase.NewIdempotencyEngine(repos.Event, metrics, dedupeCache, cfg.Pipeline.LockTimeout, zapLogger)
	scheduler := usecase.NewRetryScheduler(
		repos.Event, metrics,
		cfg.Pipeline.RetryCeiling,
		cfg.Pipeline.BackoffBase,
		cfg.Pipeline.BackoffMultiplier,
		cfg.Pipeline.BackoffMax,
		zapLogger,
	)

	var proc processor.EventProcessor
	if cfg.Service.Downstream.URL != "" {
		proc = dispatch.NewHTTPDispatcher(cfg.Service.Downstream.URL, cfg.Service.Downstream.Timeout, zapLogger)
	} else {
		proc = dispatch.LogOnly(zapLogger)
	}

	providers := make(map[model.Provider]usecase.ProviderSettings, len(cfg.Service.Providers))
	for name, pc := range cfg.Service.Providers {
		providers[model.Provider(name)] = usecase.ProviderSettings{
			Secret:    pc.WebhookSecret,
			Tolerance: pc.SignatureTolerance,
		}
	}

	pipeline := usecase.NewWebhookPipeline(providers, engine, scheduler, metrics, proc, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start retry worker
	retryWorker := worker.NewRetryWorker(
		repos.Event, engine, pipeline,
		cfg.Pipeline.WorkerPollInterval,
		cfg.Pipeline.WorkerBatchSize,
		zapLogger,
	)
	go retryWorker.Run(ctx)

	// Start HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, pipeline)
	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")
	cancel()

	if err := httpSrv.Shutdown(context.Background()); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
