package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docfoundry/docfoundry/internal/api"
	"github.com/docfoundry/docfoundry/internal/backup"
	"github.com/docfoundry/docfoundry/internal/cache"
	"github.com/docfoundry/docfoundry/internal/docs"
	"github.com/docfoundry/docfoundry/internal/lessons"
	"github.com/docfoundry/docfoundry/internal/storage"
	"github.com/docfoundry/docfoundry/pkg/config"
	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/health"
	"github.com/docfoundry/docfoundry/pkg/logging"
	"github.com/docfoundry/docfoundry/pkg/metrics"
	"github.com/docfoundry/docfoundry/pkg/resilience"
	"github.com/docfoundry/docfoundry/pkg/tracing"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "docfoundry",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	tracingService, err := tracing.NewTracingService(tracing.DefaultConfig())
	if err != nil {
		logger.Warn("Tracing disabled", "error", err.Error())
		tracingService = nil
	}

	metricsService := metrics.NewMetrics(metrics.DefaultConfig())

	// Event bus ties the resilience layer to logging and metrics
	bus := events.NewBus()
	metricsService.BindEventBus(bus)

	coordinator := resilience.NewCoordinator(resilience.Config{
		Enabled:      cfg.Resilience.Enabled,
		RetryEnabled: cfg.Resilience.RetryEnabled,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Resilience.RetryAttempts,
			BaseDelay:   cfg.Resilience.RetryDelay,
			MaxDelay:    cfg.Resilience.RetryMaxDelay,
		},
		CircuitBreakerEnabled:   cfg.Resilience.CircuitBreakerEnabled,
		CircuitBreakerThreshold: cfg.Resilience.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.Resilience.CircuitBreakerTimeout,
		HealthCheckEnabled:      cfg.Resilience.HealthCheckEnabled,
		HealthMonitor: resilience.HealthMonitorConfig{
			Interval:      cfg.Resilience.HealthCheckInterval,
			ProbeTimeout:  cfg.Resilience.HealthProbeTimeout,
			CriticalAfter: cfg.Resilience.HealthCriticalAfter,
		},
		BackupEnabled:   cfg.Resilience.BackupEnabled,
		BackupInterval:  cfg.Resilience.BackupInterval,
		StopGracePeriod: cfg.Resilience.StopGracePeriod,
	}, bus)

	// Redis backs the cache, rate limiting, and the snapshot backup source.
	// The service still serves lookups without it, just slower.
	redis, err := storage.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", "error", err.Error())
		redis = nil
	} else {
		defer redis.Close()
		coordinator.RegisterService("redis", redis.Health)
	}

	// Postgres holds distilled lessons. Optional for the same reason.
	db, err := lessons.Connect(cfg)
	var lessonStore *lessons.Store
	if err != nil {
		logger.Warn("Database unavailable, lessons disabled", "error", err.Error())
	} else {
		defer db.Close()
		lessonStore = lessons.NewStore(db, metricsService)
		coordinator.RegisterService("postgres", func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}

	var cacheService *cache.Service
	if redis != nil {
		cacheService = cache.NewService(redis, nil, metricsService)
	}

	httpClient := &http.Client{Timeout: cfg.Docs.RequestTimeout}
	if tracingService != nil {
		httpClient = tracingService.InstrumentHTTPClient(httpClient)
	}
	docsClient := docs.NewClient(&cfg.Docs, httpClient)
	docsService := docs.NewService(docsClient, cacheService, coordinator)
	coordinator.RegisterService("docs-api", docsClient.Probe)

	if redis != nil {
		coordinator.RegisterBackupProvider(
			backup.NewRedisSnapshotProvider(redis, cfg.Resilience.BackupDir, "*"))
	}
	if lessonStore != nil {
		coordinator.RegisterBackupProvider(
			backup.NewLessonExportProvider(lessonStore, cfg.Resilience.BackupDir))
	}

	healthService := health.NewService(logger, health.DefaultConfig())
	if db != nil {
		healthService.RegisterChecker("database", health.NewDatabaseChecker(db, "database"))
	}
	if redis != nil {
		healthService.RegisterChecker("redis", health.NewRedisChecker(redis, "redis"))
	}
	healthService.RegisterChecker("coordinator", health.NewCoordinatorChecker(coordinator, "coordinator"))
	if cfg.Resilience.BackupEnabled {
		healthService.RegisterChecker("backup-dir", health.NewBackupDirChecker(cfg.Resilience.BackupDir, "backup-dir"))
	}

	coordinator.Start()

	router := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Health:      healthService,
		Metrics:     metricsService,
		Tracing:     tracingService,
		Redis:       redis,
		Docs:        docsService,
		Lessons:     lessonStore,
		Coordinator: coordinator,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		cfg.Resilience.StopGracePeriod+10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced server shutdown", "error", err.Error())
	}

	// Stop waits for wrapped in-flight operations up to the grace period
	coordinator.Stop(shutdownCtx)

	if tracingService != nil {
		if err := tracingService.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err.Error())
		}
	}

	logger.Info("Server exited")
}
