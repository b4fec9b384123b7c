package model

import "time"

// Essay statuses.
const (
	EssayStatusPending    = "pending"
	EssayStatusCorrecting = "correcting"
	EssayStatusCorrected  = "corrected"
	EssayStatusError      = "error"
)

// Essay is a user-written essay awaiting AI correction. It is saved
// pending, moves to correcting when the job is enqueued and ends in
// corrected or error.
type Essay struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Theme       string     `db:"theme" json:"theme"`
	Bank        string     `db:"bank" json:"bank"`
	Content     string     `db:"content" json:"content"`
	Status      string     `db:"status" json:"status"`
	CorrectedAt *time.Time `db:"corrected_at" json:"corrected_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	Correction *EssayCorrection `db:"-" json:"correction,omitempty"`
}

// EssayCorrection holds the structured result written by the worker:
// five competency scores with per-competency feedback, a total and an
// overall comment.
type EssayCorrection struct {
	ID          string    `db:"id" json:"id"`
	EssayID     string    `db:"essay_id" json:"essay_id"`
	Competency1 int       `db:"competency_1" json:"competency_1"`
	Competency2 int       `db:"competency_2" json:"competency_2"`
	Competency3 int       `db:"competency_3" json:"competency_3"`
	Competency4 int       `db:"competency_4" json:"competency_4"`
	Competency5 int       `db:"competency_5" json:"competency_5"`
	Total       int       `db:"total" json:"total"`
	Feedback1   string    `db:"feedback_1" json:"feedback_1"`
	Feedback2   string    `db:"feedback_2" json:"feedback_2"`
	Feedback3   string    `db:"feedback_3" json:"feedback_3"`
	Feedback4   string    `db:"feedback_4" json:"feedback_4"`
	Feedback5   string    `db:"feedback_5" json:"feedback_5"`
	Overall     string    `db:"overall" json:"overall"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
