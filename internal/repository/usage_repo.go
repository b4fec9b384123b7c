package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrWeeklyLimitReached is returned when a free-tier user has exhausted
// their weekly quota for a resource type.
var ErrWeeklyLimitReached = errors.New("weekly_limit_reached")

// UsageRepository tracks per-user, per-resource weekly counters used to
// gate job admission for free-tier users.
type UsageRepository interface {
	// CountForWeek returns the usage count for the week starting at weekStart.
	// A missing row counts as zero.
	CountForWeek(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) (int, error)
	// Increment upserts the week's counter, creating it at 1 on first use.
	Increment(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) error
	// TryConsume atomically increments the counter only while it is below
	// limit, collapsing the admission check and the charge into a single
	// conditional write. Returns false when the quota is exhausted.
	TryConsume(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time, limit int) (bool, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

// CountForWeek returns the usage count for the given week.
func (r *usageRepo) CountForWeek(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) (int, error) {
	const q = `
        SELECT count
        FROM usage_counters
        WHERE user_id = $1
          AND resource_type = $2
          AND week_start = $3
    `
	var count int
	err := r.pool.QueryRow(ctx, q, userID, resource, weekStart).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting %s usage for user %s: %w", resource, userID, err)
	}
	return count, nil
}

// Increment upserts the counter for the week, creating it lazily at 1.
func (r *usageRepo) Increment(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time) error {
	const q = `
        INSERT INTO usage_counters (user_id, resource_type, week_start, count, created_at, updated_at)
        VALUES ($1, $2, $3, 1, NOW(), NOW())
        ON CONFLICT (user_id, resource_type, week_start) DO UPDATE
        SET count = usage_counters.count + 1,
            updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, resource, weekStart); err != nil {
		return fmt.Errorf("incrementing %s usage for user %s: %w", resource, userID, err)
	}
	return nil
}

// TryConsume performs the conditional increment. The WHERE clause on the
// conflict update makes two concurrent requests serialize on the row, so
// at most limit charges succeed per week.
func (r *usageRepo) TryConsume(ctx context.Context, userID string, resource model.ResourceType, weekStart time.Time, limit int) (bool, error) {
	const q = `
        INSERT INTO usage_counters (user_id, resource_type, week_start, count, created_at, updated_at)
        VALUES ($1, $2, $3, 1, NOW(), NOW())
        ON CONFLICT (user_id, resource_type, week_start) DO UPDATE
        SET count = usage_counters.count + 1,
            updated_at = NOW()
        WHERE usage_counters.count < $4
    `
	tag, err := r.pool.Exec(ctx, q, userID, resource, weekStart, limit)
	if err != nil {
		return false, fmt.Errorf("consuming %s quota for user %s: %w", resource, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}
