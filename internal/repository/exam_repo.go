package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository defines persistence for exams and their questions.
type ExamRepository interface {
	Create(ctx context.Context, exam *model.Exam) (*model.Exam, error)
	GetByID(ctx context.Context, examID string) (*model.Exam, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Exam, error)
	// SaveGenerated persists the worker's output in one transaction: the
	// exam's generated metadata, its questions and their options in the
	// order received, and the waiting_response status.
	SaveGenerated(ctx context.Context, examID, title, description string, questions []model.Question) error
	// RecordAnswers stamps the user's score and elapsed time and moves the
	// exam to its terminal answered status.
	RecordAnswers(ctx context.Context, examID string, score, elapsedSec int) error
}

type examRepo struct {
	pool *pgxpool.Pool
}

// NewExamRepo creates a new ExamRepository.
func NewExamRepo(pool *pgxpool.Pool) ExamRepository {
	return &examRepo{pool: pool}
}

const examColumns = `
        id, user_id, title, bank, subject, description, question_count,
        status, score, elapsed_sec, created_at, updated_at`

// Create persists a new exam in pending status.
func (r *examRepo) Create(ctx context.Context, exam *model.Exam) (*model.Exam, error) {
	const q = `
        INSERT INTO exams (user_id, title, bank, subject, description, question_count, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		exam.UserID,
		exam.Title,
		exam.Bank,
		exam.Subject,
		exam.Description,
		exam.QuestionCount,
		exam.Status,
	).Scan(&exam.ID, &exam.CreatedAt, &exam.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert exam for user %s: %w", exam.UserID, err)
	}
	return exam, nil
}

// GetByID returns the exam with its questions and options, or (nil, nil)
// when it does not exist.
func (r *examRepo) GetByID(ctx context.Context, examID string) (*model.Exam, error) {
	q := `SELECT` + examColumns + `
        FROM exams
        WHERE id = $1
    `
	var e model.Exam
	err := r.pool.QueryRow(ctx, q, examID).Scan(
		&e.ID,
		&e.UserID,
		&e.Title,
		&e.Bank,
		&e.Subject,
		&e.Description,
		&e.QuestionCount,
		&e.Status,
		&e.Score,
		&e.ElapsedSec,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", examID, err)
	}
	questions, err := r.questionsForExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	e.Questions = questions
	return &e, nil
}

func (r *examRepo) questionsForExam(ctx context.Context, examID string) ([]model.Question, error) {
	const q = `
        SELECT id, exam_id, statement, position, created_at
        FROM questions
        WHERE exam_id = $1
        ORDER BY position
    `
	rows, err := r.pool.Query(ctx, q, examID)
	if err != nil {
		return nil, fmt.Errorf("fetch questions for exam %s: %w", examID, err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var question model.Question
		if err := rows.Scan(&question.ID, &question.ExamID, &question.Statement, &question.Position, &question.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question for exam %s: %w", examID, err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions for exam %s: %w", examID, err)
	}

	for i := range questions {
		options, err := r.optionsForQuestion(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Options = options
	}
	return questions, nil
}

func (r *examRepo) optionsForQuestion(ctx context.Context, questionID string) ([]model.QuestionOption, error) {
	const q = `
        SELECT id, question_id, text, correct, position
        FROM question_options
        WHERE question_id = $1
        ORDER BY position
    `
	rows, err := r.pool.Query(ctx, q, questionID)
	if err != nil {
		return nil, fmt.Errorf("fetch options for question %s: %w", questionID, err)
	}
	defer rows.Close()

	var options []model.QuestionOption
	for rows.Next() {
		var opt model.QuestionOption
		if err := rows.Scan(&opt.ID, &opt.QuestionID, &opt.Text, &opt.Correct, &opt.Position); err != nil {
			return nil, fmt.Errorf("scan option for question %s: %w", questionID, err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options for question %s: %w", questionID, err)
	}
	return options, nil
}

// ListByUser returns the user's exams, newest first, without questions.
func (r *examRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Exam, error) {
	q := `SELECT` + examColumns + `
        FROM exams
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list exams for user %s: %w", userID, err)
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Title,
			&e.Bank,
			&e.Subject,
			&e.Description,
			&e.QuestionCount,
			&e.Status,
			&e.Score,
			&e.ElapsedSec,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exam for user %s: %w", userID, err)
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams for user %s: %w", userID, err)
	}
	return exams, nil
}

// SaveGenerated writes the generation result atomically.
func (r *examRepo) SaveGenerated(ctx context.Context, examID, title, description string, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction for exam %s: %w", examID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const updateQ = `
        UPDATE exams
        SET title = $2,
            description = $3,
            status = $4,
            updated_at = NOW()
        WHERE id = $1
    `
	if _, err := tx.Exec(ctx, updateQ, examID, title, description, model.ExamStatusWaitingResponse); err != nil {
		return fmt.Errorf("update generated exam %s: %w", examID, err)
	}

	const questionQ = `
        INSERT INTO questions (exam_id, statement, position, created_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id
    `
	const optionQ = `
        INSERT INTO question_options (question_id, text, correct, position)
        VALUES ($1, $2, $3, $4)
    `
	for i, question := range questions {
		var questionID string
		if err := tx.QueryRow(ctx, questionQ, examID, question.Statement, i).Scan(&questionID); err != nil {
			return fmt.Errorf("insert question %d for exam %s: %w", i, examID, err)
		}
		for j, opt := range question.Options {
			if _, err := tx.Exec(ctx, optionQ, questionID, opt.Text, opt.Correct, j); err != nil {
				return fmt.Errorf("insert option %d for question %s: %w", j, questionID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing generated exam %s: %w", examID, err)
	}
	return nil
}

// RecordAnswers stamps score and elapsed time and marks the exam answered.
func (r *examRepo) RecordAnswers(ctx context.Context, examID string, score, elapsedSec int) error {
	const q = `
        UPDATE exams
        SET score = $2,
            elapsed_sec = $3,
            status = $4,
            updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, examID, score, elapsedSec, model.ExamStatusAnswered); err != nil {
		return fmt.Errorf("record answers for exam %s: %w", examID, err)
	}
	return nil
}
