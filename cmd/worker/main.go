package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kislikjeka/tallymigrate/internal/infra/postgres"
	"github.com/kislikjeka/tallymigrate/internal/infra/queue"
	"github.com/kislikjeka/tallymigrate/internal/infra/redis"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/config"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// directoryTTL bounds how long resolved parties and units stay cached
const directoryTTL = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Tally migration worker",
		"env", cfg.Env,
		"concurrency", cfg.WorkerConcurrency,
		"stage_timeout", cfg.StageTimeout,
	)

	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

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

	runner := migration.NewRunner(
		postgres.NewJobRepository(db.Pool),
		postgres.NewArtifactRepository(db.Pool),
		postgres.NewDocumentRepository(db.Pool),
		daybook.NewCachedDirectory(postgres.NewDirectory(db.Pool), directoryTTL),
		redis.NewNotifier(redisClient, log),
		redis.NewCancelFlag(redisClient, log),
		migration.RunnerConfig{StageTimeout: cfg.StageTimeout},
		log.Logger,
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues:      map[string]int{queue.QueueLong: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("stage task failed", "type", task.Type(), "error", err)
			}),
			ShutdownTimeout: 30 * time.Second,
		},
	)

	mux := asynq.NewServeMux()
	queue.RegisterHandlers(mux, queue.NewStageHandler(runner, log))

	if err := srv.Start(mux); err != nil {
		log.Error("Worker failed to start", "error", err)
		os.Exit(1)
	}
	log.Info("Worker started", "queue", queue.QueueLong)

	<-ctx.Done()
	log.Info("Shutdown signal received")
	srv.Shutdown()
	log.Info("Worker stopped gracefully")
}
