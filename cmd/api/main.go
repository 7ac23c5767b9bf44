package main

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kislikjeka/tallymigrate/internal/infra/postgres"
	"github.com/kislikjeka/tallymigrate/internal/infra/queue"
	"github.com/kislikjeka/tallymigrate/internal/infra/redis"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/handler"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/tallymigrate/pkg/config"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

//go:embed openapi.yaml
var openAPISpec []byte

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Tally migration API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Redis carries progress updates and cancel flags
	redisClient, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("Redis connection established")

	// Stage tasks go to the worker through asynq on the same Redis
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize services
	jobRepo := postgres.NewJobRepository(db.Pool)
	artifactRepo := postgres.NewArtifactRepository(db.Pool)
	notifier := redis.NewNotifier(redisClient, log)
	cancelFlag := redis.NewCancelFlag(redisClient, log)
	dispatcher := queue.NewDispatcher(queueClient, cfg.StageTimeout, log)
	migrationSvc := migration.NewService(jobRepo, artifactRepo, dispatcher, cancelFlag, log.Logger)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	// Initialize HTTP handlers
	migrationHandler := handler.NewMigrationHandler(migrationSvc, handler.HandlerConfig{
		MaxUploadMB: cfg.MaxUploadMB,
		ChunkSize:   cfg.ChunkSize,
	}, log)
	eventsHandler := handler.NewEventsHandler(migrationSvc, notifier, log)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": handler.PingFunc(db.Health),
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})
	docsHandler := handler.NewDocsHandler(openAPISpec)

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:           log,
		AllowedOrigins:   cfg.AllowedOrigins,
		MigrationHandler: migrationHandler,
		EventsHandler:    eventsHandler,
		HealthHandler:    healthHandler,
		DocsHandler:      docsHandler,
		JWTMiddleware:    middleware.JWTMiddleware(jwtSvc),
	})

	// Create HTTP server. No write timeout: progress streams stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
