package model

import "time"

// DeadLetterMessage is a generation job that exhausted its retry budget,
// persisted for manual inspection and replay.
type DeadLetterMessage struct {
	ID        string    `db:"id"`
	QueueName string    `db:"queue_name"`
	MessageID string    `db:"message_id"`
	Payload   string    `db:"payload"` // Should be a JSON string
	LastError *string   `db:"last_error"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
