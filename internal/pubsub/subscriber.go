package pubsub

import (
	"context"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/config"

	"cloud.google.com/go/pubsub"
)

// Subscriber consumes messages from a Pub/Sub subscription with manual
// acknowledgment: the handler's error decides between Ack and Nack, so
// delivery is at-least-once.
type Subscriber struct {
	client       *pubsub.Client
	subscription string
}

// NewSubscriber creates a Subscriber for the configured generation subscription.
func NewSubscriber(ctx context.Context, cfg *config.Config) (*Subscriber, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Subscriber{client: client, subscription: cfg.PubSubGenerationSubscription}, nil
}

// Receive blocks, delivering messages to handler until ctx is cancelled.
// A nil handler error acks the message; any other error nacks it for
// redelivery.
func (s *Subscriber) Receive(ctx context.Context, handler func(ctx context.Context, data []byte) error) error {
	sub := s.client.Subscription(s.subscription)
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, m.Data); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive on subscription %s: %w", s.subscription, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Subscriber) Close() error {
	return s.client.Close()
}
