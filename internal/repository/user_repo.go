package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines methods for accessing user data. Lookups return
// (nil, nil) when no row exists.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with the given ID.
func (r *userRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	const q = `
        SELECT user_id, name, email, stripe_customer_id, created_at, updated_at
        FROM user_profiles
        WHERE user_id = $1
    `
	u, err := scanUser(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return u, nil
}

// GetUserByStripeCustomerID returns the user owning the Stripe customer.
func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	const q = `
        SELECT user_id, name, email, stripe_customer_id, created_at, updated_at
        FROM user_profiles
        WHERE stripe_customer_id = $1
    `
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

// UpdateStripeCustomerID stores the Stripe customer reference on the user.
func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `
        UPDATE user_profiles
        SET stripe_customer_id = $2,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("store stripe customer id for user %s: %w", userID, err)
	}
	return nil
}
