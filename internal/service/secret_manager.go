package service

import (
	"context"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Well-known secret names resolved at startup when USE_SECRET_MANAGER is set.
const (
	SecretStripeKey     = "stripe-secret-key"
	SecretGenerationKey = "generation-api-key"
)

// SecretManagerService resolves application secrets from GCP Secret Manager
// so production deployments do not carry them in plain env vars.
type SecretManagerService interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// GetSecret returns the latest version of the named secret.
func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	secretPath := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretPath,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveSecrets overwrites config secrets with their Secret Manager values.
func ResolveSecrets(ctx context.Context, cfg *config.Config, secrets SecretManagerService) error {
	stripeKey, err := secrets.GetSecret(ctx, SecretStripeKey)
	if err != nil {
		return err
	}
	cfg.StripeSecretKey = stripeKey

	generationKey, err := secrets.GetSecret(ctx, SecretGenerationKey)
	if err != nil {
		return err
	}
	cfg.GenerationAPIKey = generationKey
	return nil
}
