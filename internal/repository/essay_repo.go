package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EssayRepository defines persistence for essays and their corrections.
type EssayRepository interface {
	Create(ctx context.Context, essay *model.Essay) (*model.Essay, error)
	GetByID(ctx context.Context, essayID string) (*model.Essay, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Essay, error)
	UpdateStatus(ctx context.Context, essayID, status string) error
	// SaveCorrection inserts the correction row and marks the essay
	// corrected with a correction timestamp, in one transaction.
	SaveCorrection(ctx context.Context, correction *model.EssayCorrection) error
}

type essayRepo struct {
	pool *pgxpool.Pool
}

// NewEssayRepo creates a new EssayRepository.
func NewEssayRepo(pool *pgxpool.Pool) EssayRepository {
	return &essayRepo{pool: pool}
}

const essayColumns = `
        id, user_id, theme, bank, content, status, corrected_at, created_at, updated_at`

// Create persists a new essay in pending status.
func (r *essayRepo) Create(ctx context.Context, essay *model.Essay) (*model.Essay, error) {
	const q = `
        INSERT INTO essays (user_id, theme, bank, content, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		essay.UserID,
		essay.Theme,
		essay.Bank,
		essay.Content,
		essay.Status,
	).Scan(&essay.ID, &essay.CreatedAt, &essay.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert essay for user %s: %w", essay.UserID, err)
	}
	return essay, nil
}

// GetByID returns the essay with its correction if present, or (nil, nil)
// when it does not exist.
func (r *essayRepo) GetByID(ctx context.Context, essayID string) (*model.Essay, error) {
	q := `SELECT` + essayColumns + `
        FROM essays
        WHERE id = $1
    `
	var e model.Essay
	err := r.pool.QueryRow(ctx, q, essayID).Scan(
		&e.ID,
		&e.UserID,
		&e.Theme,
		&e.Bank,
		&e.Content,
		&e.Status,
		&e.CorrectedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch essay %s: %w", essayID, err)
	}

	correction, err := r.correctionForEssay(ctx, essayID)
	if err != nil {
		return nil, err
	}
	e.Correction = correction
	return &e, nil
}

func (r *essayRepo) correctionForEssay(ctx context.Context, essayID string) (*model.EssayCorrection, error) {
	const q = `
        SELECT id, essay_id,
               competency_1, competency_2, competency_3, competency_4, competency_5,
               total,
               feedback_1, feedback_2, feedback_3, feedback_4, feedback_5,
               overall, created_at
        FROM essay_corrections
        WHERE essay_id = $1
    `
	var c model.EssayCorrection
	err := r.pool.QueryRow(ctx, q, essayID).Scan(
		&c.ID,
		&c.EssayID,
		&c.Competency1,
		&c.Competency2,
		&c.Competency3,
		&c.Competency4,
		&c.Competency5,
		&c.Total,
		&c.Feedback1,
		&c.Feedback2,
		&c.Feedback3,
		&c.Feedback4,
		&c.Feedback5,
		&c.Overall,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch correction for essay %s: %w", essayID, err)
	}
	return &c, nil
}

// ListByUser returns the user's essays, newest first, without corrections.
func (r *essayRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Essay, error) {
	q := `SELECT` + essayColumns + `
        FROM essays
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list essays for user %s: %w", userID, err)
	}
	defer rows.Close()

	var essays []model.Essay
	for rows.Next() {
		var e model.Essay
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Theme,
			&e.Bank,
			&e.Content,
			&e.Status,
			&e.CorrectedAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan essay for user %s: %w", userID, err)
		}
		essays = append(essays, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate essays for user %s: %w", userID, err)
	}
	return essays, nil
}

// UpdateStatus moves the essay to the given status.
func (r *essayRepo) UpdateStatus(ctx context.Context, essayID, status string) error {
	const q = `
        UPDATE essays
        SET status = $2,
            updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, essayID, status); err != nil {
		return fmt.Errorf("update essay %s to status %s: %w", essayID, status, err)
	}
	return nil
}

// SaveCorrection writes the correction result atomically.
func (r *essayRepo) SaveCorrection(ctx context.Context, correction *model.EssayCorrection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction for essay %s: %w", correction.EssayID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertQ = `
        INSERT INTO essay_corrections
            (essay_id,
             competency_1, competency_2, competency_3, competency_4, competency_5,
             total,
             feedback_1, feedback_2, feedback_3, feedback_4, feedback_5,
             overall, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
        RETURNING id, created_at
    `
	err = tx.QueryRow(ctx, insertQ,
		correction.EssayID,
		correction.Competency1,
		correction.Competency2,
		correction.Competency3,
		correction.Competency4,
		correction.Competency5,
		correction.Total,
		correction.Feedback1,
		correction.Feedback2,
		correction.Feedback3,
		correction.Feedback4,
		correction.Feedback5,
		correction.Overall,
	).Scan(&correction.ID, &correction.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert correction for essay %s: %w", correction.EssayID, err)
	}

	const updateQ = `
        UPDATE essays
        SET status = $2,
            corrected_at = NOW(),
            updated_at = NOW()
        WHERE id = $1
    `
	if _, err := tx.Exec(ctx, updateQ, correction.EssayID, model.EssayStatusCorrected); err != nil {
		return fmt.Errorf("mark essay %s corrected: %w", correction.EssayID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing correction for essay %s: %w", correction.EssayID, err)
	}
	return nil
}
