package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowdesk/automations/internal/api/rest"
	"github.com/glowdesk/automations/internal/api/rest/handlers"
	"github.com/glowdesk/automations/internal/engine"
	"github.com/glowdesk/automations/internal/executors"
	"github.com/glowdesk/automations/internal/repository/postgres"
	redisrepo "github.com/glowdesk/automations/internal/repository/redis"
	"github.com/glowdesk/automations/internal/services"
	"github.com/glowdesk/automations/internal/workers"
	"github.com/glowdesk/automations/pkg/auth"
	"github.com/glowdesk/automations/pkg/config"
	"github.com/glowdesk/automations/pkg/database"
	"github.com/glowdesk/automations/pkg/logger"
	"github.com/glowdesk/automations/pkg/metrics"
	"github.com/glowdesk/automations/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting Glowdesk Automations API",
		logger.String("version", cfg.App.Version),
		logger.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize Redis
	redis, err := database.NewRedisClient(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()

	// Initialize metrics
	m := metrics.New()

	// Initialize repositories
	workflowRepo := postgres.NewWorkflowRepository(db.DB)
	jobRepo := postgres.NewJobRepositoryWithLease(db.DB, cfg.Engine.DispatchLease)
	eventRepo := postgres.NewEventRepository(db.DB)
	fireRepo := postgres.NewFireRepository(db.DB)
	directoryRepo := postgres.NewDirectoryRepository(db.DB)
	scanGuard := redisrepo.NewScanGuard(redis.Client)

	// Initialize executors
	coreClient := executors.NewCoreAPIClient(&cfg.CoreAPI, log)
	executorSet := engine.ExecutorSet{
		Email:        executors.NewSMTPEmailExecutor(&cfg.Email, log),
		SMS:          coreClient,
		Loyalty:      coreClient,
		Promotions:   coreClient,
		Task:         coreClient,
		CRM:          coreClient,
		Notification: executors.NewRedisNotificationExecutor(redis.Client, log),
		Webhook:      executors.NewHTTPWebhookExecutor(&cfg.Webhook, log),
	}

	// Initialize the AI message composer (optional)
	var composer engine.Composer
	messageComposer, err := services.NewMessageComposer(&cfg.Composer, log)
	if err != nil {
		return fmt.Errorf("failed to initialize composer: %w", err)
	}
	if messageComposer != nil {
		composer = messageComposer
	}

	// Initialize engine components
	builder := engine.NewContextBuilder(directoryRepo)
	scheduler := engine.NewActionScheduler(jobRepo, m, log)
	bus := engine.NewEventBus(workflowRepo, eventRepo, builder, scheduler, cfg.Engine.EventQueueSize, m, log)
	dispatcher := engine.NewActionDispatcher(
		jobRepo, workflowRepo, executorSet, composer,
		cfg.Engine.MaxAttempts, cfg.Engine.RetryBaseDelay, m, log,
	)
	scanner := engine.NewTriggerScanner(workflowRepo, directoryRepo, fireRepo, scanGuard, builder, scheduler, m, log)

	// Start the engine
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	bus.Start(workerCtx)

	dispatcherWorker := workers.NewDispatcherWorker(
		dispatcher, log,
		cfg.Engine.DispatchInterval, cfg.Engine.DispatchBatchSize, cfg.Engine.DispatchWorkers,
	)
	dispatcherWorker.Start(workerCtx)

	scannerWorker := workers.NewScannerWorker(scanner, log, cfg.Engine.ScanInterval)
	scannerWorker.Start(workerCtx)

	// Sample the pending queue depth for the gauge
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := jobRepo.CountPending(workerCtx); err == nil {
					m.PendingJobs.Set(float64(count))
				}
			case <-workerCtx.Done():
				return
			}
		}
	}()

	// Initialize service auth
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-this-in-production"
		log.Warn("JWT_SECRET not set, using default (INSECURE - only for development)")
	}
	tokens := auth.NewTokenManager(jwtSecret)
	keys := auth.NewKeyRing(cfg.Auth.APIKeyHashes)

	// Initialize services and handlers
	workflowService := services.NewWorkflowService(workflowRepo, jobRepo, validator.New(), log)

	h := handlers.NewHandlers(
		log,
		workflowService,
		bus,
		jobRepo,
		eventRepo,
		&handlers.HealthCheckers{
			DB:    db,
			Redis: redis,
		},
		cfg.App.Version,
	)

	// Initialize router
	router := rest.NewRouter(log, h, tokens, keys, m)
	router.SetupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("API server listening", logger.String("address", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))

		// Stop intake first, then drain the workers
		scannerWorker.Stop()
		dispatcherWorker.Stop()
		bus.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
