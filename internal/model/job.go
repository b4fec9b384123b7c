package model

// Job kinds carried on the generation queue.
const (
	JobKindGenerateQuestions = "generate_questions"
	JobKindCorrectEssay      = "correct_essay"
)

// JobMessage is the broker envelope for a generation job. Delivery is
// at-least-once: the worker must tolerate seeing the same message twice.
type JobMessage struct {
	Kind    string `json:"kind"`
	ExamID  string `json:"exam_id,omitempty"`
	EssayID string `json:"essay_id,omitempty"`

	// Minimal payload needed to rebuild the prompt without re-reading
	// the entity.
	Subject       string `json:"subject,omitempty"`
	Bank          string `json:"bank,omitempty"`
	QuestionCount int    `json:"question_count,omitempty"`
	Theme         string `json:"theme,omitempty"`
	Content       string `json:"content,omitempty"`
}
