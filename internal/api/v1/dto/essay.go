package dto

import "time"

// EssayCreateDTO is used for incoming essay creation requests
type EssayCreateDTO struct {
	Theme   string `json:"theme" validate:"required"`
	Bank    string `json:"bank" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// EssayResponseDTO is returned in API responses for essays
type EssayResponseDTO struct {
	EssayID     string                 `json:"essay_id"`
	UserID      string                 `json:"user_id"`
	Theme       string                 `json:"theme"`
	Bank        string                 `json:"bank"`
	Content     string                 `json:"content"`
	Status      string                 `json:"status"`
	Correction  *CorrectionResponseDTO `json:"correction,omitempty"`
	CorrectedAt *time.Time             `json:"corrected_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// CorrectionResponseDTO mirrors the five-competency grading model.
type CorrectionResponseDTO struct {
	Competency1 int    `json:"competency_1"`
	Competency2 int    `json:"competency_2"`
	Competency3 int    `json:"competency_3"`
	Competency4 int    `json:"competency_4"`
	Competency5 int    `json:"competency_5"`
	Total       int    `json:"total"`
	Feedback1   string `json:"feedback_1"`
	Feedback2   string `json:"feedback_2"`
	Feedback3   string `json:"feedback_3"`
	Feedback4   string `json:"feedback_4"`
	Feedback5   string `json:"feedback_5"`
	Overall     string `json:"overall"`
}
