package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription data.
// Lookups return (nil, nil) when no row exists so callers can distinguish
// absence from failure.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)
	Insert(ctx context.Context, sub *model.Subscription) error
	// Update rewrites the mutable Stripe-derived fields of an existing row.
	Update(ctx context.Context, sub *model.Subscription) error
	SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `
        id, user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
        status, current_period_start, current_period_end, cancel_at_period_end,
        created_at, updated_at`

func (r *subscriptionRepo) scanOne(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.StripeCustomerID,
		&s.StripeSubscriptionID,
		&s.StripePriceID,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserID returns the user's subscription regardless of status.
func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	q := `SELECT` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
    `
	sub, err := r.scanOne(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return sub, nil
}

// GetByCustomerID locates a subscription by its Stripe customer reference.
func (r *subscriptionRepo) GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	q := `SELECT` + subscriptionColumns + `
        FROM subscriptions
        WHERE stripe_customer_id = $1
    `
	sub, err := r.scanOne(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for customer %s: %w", customerID, err)
	}
	return sub, nil
}

// Insert creates a new subscription row for a user without one.
func (r *subscriptionRepo) Insert(ctx context.Context, sub *model.Subscription) error {
	const q = `
        INSERT INTO subscriptions
            (user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
             status, current_period_start, current_period_end, cancel_at_period_end,
             created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		sub.UserID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

// Update rewrites the Stripe-derived fields of the row identified by sub.ID.
func (r *subscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	const q = `
        UPDATE subscriptions
        SET stripe_customer_id = $2,
            stripe_subscription_id = $3,
            stripe_price_id = $4,
            status = $5,
            current_period_start = $6,
            current_period_end = $7,
            cancel_at_period_end = $8,
            updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.pool.Exec(ctx, q,
		sub.ID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

// SetCancelAtPeriodEnd flips the local cancellation flag for a user.
func (r *subscriptionRepo) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	const q = `
        UPDATE subscriptions
        SET cancel_at_period_end = $2,
            updated_at = NOW()
        WHERE user_id = $1
    `
	_, err := r.pool.Exec(ctx, q, userID, cancel)
	if err != nil {
		return fmt.Errorf("set cancel_at_period_end for user %s: %w", userID, err)
	}
	return nil
}
