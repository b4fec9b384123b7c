package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	"github.com/justAlves/estudeai-sub000/internal/config"
	"github.com/justAlves/estudeai-sub000/internal/logger"
	"github.com/justAlves/estudeai-sub000/internal/pgmq"
	"github.com/justAlves/estudeai-sub000/internal/pubsub"
	"github.com/justAlves/estudeai-sub000/internal/repository"
	"github.com/justAlves/estudeai-sub000/internal/service"
	"github.com/justAlves/estudeai-sub000/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Production secrets come from Secret Manager when enabled.
	if cfg.UseSecretManager {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
		}
		if err := service.ResolveSecrets(ctx, cfg, secrets); err != nil {
			logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
		}
		secrets.Close()
	}

	// Repositories ride on pgx; the queue client uses database/sql.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	examRepo := repository.NewExamRepo(pool)
	essayRepo := repository.NewEssayRepo(pool)
	generator := service.NewGenerationClient(cfg)
	processor := worker.NewProcessor(examRepo, essayRepo, generator, logger)

	var runErr error
	switch cfg.Broker {
	case "pubsub":
		subscriber, err := pubsub.NewSubscriber(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub subscriber: %v", err)
		}
		defer subscriber.Close()

		logger.Info().Str("subscription", cfg.PubSubGenerationSubscription).Msg("Starting generation worker")
		// Retry budget and dead-lettering are handled by the
		// subscription's dead-letter policy; a nack is enough here.
		if err := subscriber.Receive(ctx, processor.Process); err != nil && ctx.Err() == nil {
			runErr = err
		}
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Msgf("Failed to open DB connection: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Fatal().Msgf("Failed to ping queue DB: %v", err)
		}

		pgmqClient := pgmq.New(db)
		logger.Info().Msg("PGMQ client initialized")

		dlqRepo := repository.NewDLQRepository(db)
		runErr = worker.Run(ctx, cfg, logger, pgmqClient, dlqRepo, processor)
	}

	if runErr != nil {
		logger.Fatal().Msgf("Generation worker failed: %v", runErr)
	}

	logger.Info().Msg("Generation worker stopped gracefully")
}
