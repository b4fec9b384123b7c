package pgmq

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

// Client wraps a Postgres DB for pgmq queue operations.
type Client struct {
	db *sql.DB
}

// New returns a new PGMQ client backed by the given DB connection.
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// Message represents a single pgmq message.
type Message struct {
	ID        int64  // message identifier
	ReadCount int    // delivery attempts so far, including this one
	Data      []byte // raw JSON payload
}

// Send pushes a JSON payload into the given queue.
func (c *Client) Send(ctx context.Context, queue string, payload []byte) error {
	query := "SELECT pgmq.send($1, $2::jsonb, 0)"
	if _, err := c.db.ExecContext(ctx, query, queue, string(payload)); err != nil {
		return fmt.Errorf("pgmq send failed: %w", err)
	}
	return nil
}

// Publish sends the payload to the given queue and returns the message ID.
// It satisfies the same contract as the Pub/Sub publisher so either broker
// can back the job submitters.
func (c *Client) Publish(ctx context.Context, queue string, payload []byte) (string, error) {
	query := "SELECT pgmq.send($1, $2::jsonb, 0)"
	var msgID int64
	if err := c.db.QueryRowContext(ctx, query, queue, string(payload)).Scan(&msgID); err != nil {
		return "", fmt.Errorf("pgmq send failed: %w", err)
	}
	return strconv.FormatInt(msgID, 10), nil
}

// ReadWithPoll reads up to maxMessages from the queue, blocking up to timeoutSec seconds.
// Read messages become invisible for timeoutSec and are redelivered if not deleted.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*Message, error) {
	query := "SELECT msg_id, read_ct, message FROM pgmq.read_with_poll($1, $2, $3)"
	rows, err := c.db.QueryContext(ctx, query, queue, timeoutSec, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll failed: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var id int64
		var readCt int
		var data []byte
		if err := rows.Scan(&id, &readCt, &data); err != nil {
			return nil, fmt.Errorf("pgmq read scan failed: %w", err)
		}
		msgs = append(msgs, &Message{ID: id, ReadCount: readCt, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmq read rows error: %w", err)
	}
	return msgs, nil
}

// Delete removes messages by their IDs from the specified queue.
// The IDs go over the wire as a bigint[]; database/sql drivers do not
// accept a bare []int64 parameter.
func (c *Client) Delete(ctx context.Context, queue string, msgIDs []int64) error {
	query := "SELECT pgmq.delete($1, $2::bigint[])"
	if _, err := c.db.ExecContext(ctx, query, queue, pq.Array(msgIDs)); err != nil {
		return fmt.Errorf("pgmq delete failed: %w", err)
	}
	return nil
}

// Archive moves a message to the queue's archive table instead of deleting it.
func (c *Client) Archive(ctx context.Context, queue string, msgID int64) error {
	query := "SELECT pgmq.archive($1, $2)"
	if _, err := c.db.ExecContext(ctx, query, queue, msgID); err != nil {
		return fmt.Errorf("pgmq archive failed: %w", err)
	}
	return nil
}
