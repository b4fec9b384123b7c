package dto

import "time"

// ExamCreateDTO is used for incoming exam generation requests
type ExamCreateDTO struct {
	Subject       string `json:"subject" validate:"required"`
	Bank          string `json:"bank" validate:"required"`
	QuestionCount int    `json:"question_count" validate:"required,min=1,max=30"`
}

// ExamAnswersDTO carries the user's chosen option per question.
type ExamAnswersDTO struct {
	Answers    map[string]string `json:"answers" validate:"required,min=1"`
	ElapsedSec int               `json:"elapsed_sec" validate:"min=0"`
}

// ExamResponseDTO is returned in API responses for exams
type ExamResponseDTO struct {
	ExamID        string                `json:"exam_id"`
	UserID        string                `json:"user_id"`
	Title         string                `json:"title,omitempty"`
	Subject       string                `json:"subject"`
	Bank          string                `json:"bank"`
	QuestionCount int                   `json:"question_count"`
	Status        string                `json:"status"`
	Score         *int                  `json:"score,omitempty"`
	ElapsedSec    *int                  `json:"elapsed_sec,omitempty"`
	Questions     []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type QuestionResponseDTO struct {
	QuestionID string              `json:"question_id"`
	Statement  string              `json:"statement"`
	Position   int                 `json:"position"`
	Options    []OptionResponseDTO `json:"options"`
}

// OptionResponseDTO exposes the correct flag only once the exam has been
// answered, so clients cannot read the key ahead of time.
type OptionResponseDTO struct {
	OptionID string `json:"option_id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	Correct  *bool  `json:"correct,omitempty"`
}
