package model

import "time"

// Exam statuses. There is no failure terminal state: a generation error
// leaves the exam pending and the job is retried or dead-lettered.
const (
	ExamStatusPending         = "pending"
	ExamStatusWaitingResponse = "waiting_response"
	ExamStatusAnswered        = "answered"
)

// Exam is an AI-generated practice exam. It is created pending, gains its
// questions from the worker (waiting_response) and becomes answered once
// the user submits their responses.
type Exam struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Title         string    `db:"title" json:"title"`
	Bank          string    `db:"bank" json:"bank"`
	Subject       string    `db:"subject" json:"subject"`
	Description   string    `db:"description" json:"description"`
	QuestionCount int       `db:"question_count" json:"question_count"`
	Status        string    `db:"status" json:"status"`
	Score         *int      `db:"score" json:"score,omitempty"`
	ElapsedSec    *int      `db:"elapsed_sec" json:"elapsed_sec,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	Questions []Question `db:"-" json:"questions,omitempty"`
}

// Question belongs to an exam and is inserted by the worker in the order
// the generation service returned it.
type Question struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	Statement string    `db:"statement" json:"statement"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Options []QuestionOption `db:"-" json:"options,omitempty"`
}

// QuestionOption is a single alternative for a question.
type QuestionOption struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	Correct    bool   `db:"correct" json:"correct"`
	Position   int    `db:"position" json:"position"`
}
