package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Stripe settings
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceMonthly    string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceAnnual     string `envconfig:"STRIPE_PRICE_ANNUAL"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/plans"`

	// AI generation service settings
	GenerationBaseURL           string `envconfig:"GENERATION_BASE_URL" required:"true"`
	GenerationAPIKey            string `envconfig:"GENERATION_API_KEY"`
	GenerationRequestTimeoutSec int    `envconfig:"GENERATION_REQUEST_TIMEOUT_SEC" default:"300"`

	// Job queue settings
	Broker                   string `envconfig:"BROKER" default:"pgmq"` // pgmq | pubsub
	GenerationQueueName      string `envconfig:"GENERATION_QUEUE_NAME" default:"generation_queue"`
	GenerationPollTimeoutSec int    `envconfig:"GENERATION_POLL_TIMEOUT_SEC" default:"30"`
	GenerationPollMaxMsg     int    `envconfig:"GENERATION_POLL_MAX_MSG" default:"1"`
	GenerationMaxRetries     int    `envconfig:"GENERATION_MAX_RETRIES" default:"5"`

	// GCP settings (Pub/Sub broker and Secret Manager)
	GCPProjectID                 string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost           string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubGenerationTopic        string `envconfig:"PUBSUB_GENERATION_TOPIC" default:"generation-jobs"`
	PubSubGenerationSubscription string `envconfig:"PUBSUB_GENERATION_SUBSCRIPTION" default:"generation-jobs-worker"`
	UseSecretManager             bool   `envconfig:"USE_SECRET_MANAGER" default:"false"`

	// Weekly quota for free-tier users, per resource type.
	FreeWeeklyLimit int `envconfig:"FREE_WEEKLY_LIMIT" default:"1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
