package router

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/api/v1/handler"
	"github.com/justAlves/estudeai-sub000/internal/config"
	"github.com/justAlves/estudeai-sub000/internal/middleware"
	"github.com/justAlves/estudeai-sub000/internal/pgmq"
	"github.com/justAlves/estudeai-sub000/internal/pubsub"
	"github.com/justAlves/estudeai-sub000/internal/repository"
	"github.com/justAlves/estudeai-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the API handler and returns a cleanup that closes the
// database connections and the broker client.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	// Production secrets come from Secret Manager when enabled; local
	// setups keep using plain env vars.
	if cfg.UseSecretManager {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
			return nil, nil, err
		}
		if err := service.ResolveSecrets(ctx, cfg, secrets); err != nil {
			logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
			return nil, nil, err
		}
		secrets.Close()
	}

	dsn := cfg.DatabaseURL
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// Select the job broker. pgmq rides on the same Postgres instance via
	// database/sql; Pub/Sub is the managed alternative.
	var publisher pubsub.Publisher
	var queueDB *sql.DB
	var pubSubPublisher *pubsub.PubSubPublisher
	switch cfg.Broker {
	case "pubsub":
		pubSubPublisher, err = pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
			return nil, nil, err
		}
		publisher = pubSubPublisher
	default:
		queueDB, err = sql.Open("pgx", dsn)
		if err != nil {
			logger.Fatal().Msgf("Failed to open queue DB connection: %v", err)
			return nil, nil, err
		}
		queueDB.SetMaxOpenConns(10)
		queueDB.SetConnMaxIdleTime(5 * time.Minute)
		publisher = pgmq.New(queueDB)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepo(pool)
	subscriptionRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	examRepo := repository.NewExamRepo(pool)
	essayRepo := repository.NewEssayRepo(pool)

	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, usageRepo, cfg.FreeWeeklyLimit, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subscriptionSvc, logger)
	queueName := cfg.GenerationQueueName
	if cfg.Broker == "pubsub" {
		queueName = cfg.PubSubGenerationTopic
	}
	examSvc := service.NewExamService(examRepo, subscriptionSvc, publisher, queueName, logger)
	essaySvc := service.NewEssayService(essayRepo, subscriptionSvc, publisher, queueName, logger)

	examHandler := handler.NewExamHandler(examSvc, subscriptionSvc, validate, logger)
	essayHandler := handler.NewEssayHandler(essaySvc, subscriptionSvc, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(stripeSvc, subscriptionSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	apiV1Mux := http.NewServeMux()
	examHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	essayHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger/swagger-ui"))))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	cleanup := func() {
		pool.Close()
		if queueDB != nil {
			queueDB.Close()
		}
		if pubSubPublisher != nil {
			pubSubPublisher.Close()
		}
	}

	return middleware.LoggerMiddleware(c.Handler(mux)), cleanup, nil
}
