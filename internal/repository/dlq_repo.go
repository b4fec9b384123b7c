package repository

import (
	"context"
	"database/sql"

	"github.com/justAlves/estudeai-sub000/internal/model"
)

type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	db *sql.DB
}

func NewDLQRepository(db *sql.DB) DLQRepository {
	return &dlqRepository{db: db}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	query := `
        INSERT INTO dead_letter_messages (queue_name, message_id, payload, last_error, status)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.db.ExecContext(
		ctx,
		query,
		message.QueueName,
		message.MessageID,
		message.Payload,
		message.LastError,
		message.Status,
	)
	return err
}
