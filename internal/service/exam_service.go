package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/pubsub"
	"github.com/justAlves/estudeai-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// Sentinel errors the handlers map to HTTP statuses with errors.Is.
var (
	// ErrNotOwner is returned when a user touches an entity they do not own.
	ErrNotOwner = errors.New("entity does not belong to user")
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrNotAwaitingResponses is returned when answers arrive for an exam
	// that is not in the waiting_response status.
	ErrNotAwaitingResponses = errors.New("exam is not awaiting responses")
)

// ExamSpec is the user's request for a generated practice exam.
type ExamSpec struct {
	Subject       string
	Bank          string
	QuestionCount int
}

// ExamService defines exam-related operations.
type ExamService interface {
	// SubmitExam runs admission, persists a pending exam and enqueues the
	// generation job. The exam stays pending until the worker advances it.
	SubmitExam(ctx context.Context, userID string, spec ExamSpec) (*model.Exam, error)
	GetExam(ctx context.Context, examID, userID string) (*model.Exam, error)
	ListExams(ctx context.Context, userID string, limit, offset int) ([]model.Exam, error)
	// SubmitAnswers grades the user's responses against the stored correct
	// options and moves the exam to its terminal answered status.
	SubmitAnswers(ctx context.Context, examID, userID string, answers map[string]string, elapsedSec int) (*model.Exam, error)
}

type examService struct {
	repo      repository.ExamRepository
	subSvc    SubscriptionService
	publisher pubsub.Publisher
	queueName string
	logger    zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(repo repository.ExamRepository, subSvc SubscriptionService, publisher pubsub.Publisher, queueName string, logger zerolog.Logger) ExamService {
	return &examService{
		repo:      repo,
		subSvc:    subSvc,
		publisher: publisher,
		queueName: queueName,
		logger:    logger.With().Str("service", "ExamService").Logger(),
	}
}

// SubmitExam is the quota-gated dispatch path for exam generation.
func (s *examService) SubmitExam(ctx context.Context, userID string, spec ExamSpec) (*model.Exam, error) {
	// Admission and charge are a single conditional write for free users;
	// pro users pass through unbilled.
	if err := s.subSvc.ConsumeQuota(ctx, userID, model.ResourceTypeExam); err != nil {
		return nil, err
	}

	exam := &model.Exam{
		UserID:        userID,
		Bank:          spec.Bank,
		Subject:       spec.Subject,
		QuestionCount: spec.QuestionCount,
		Status:        model.ExamStatusPending,
	}
	exam, err := s.repo.Create(ctx, exam)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create exam record")
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	job := model.JobMessage{
		Kind:          model.JobKindGenerateQuestions,
		ExamID:        exam.ID,
		Subject:       spec.Subject,
		Bank:          spec.Bank,
		QuestionCount: spec.QuestionCount,
	}
	data, err := json.Marshal(job)
	if err != nil {
		s.logger.Error().Err(err).Str("exam_id", exam.ID).Msg("Failed to marshal generation job")
		return nil, fmt.Errorf("failed to marshal generation job: %w", err)
	}
	// A publish failure leaves the exam stranded in pending; there is no
	// automatic re-publish.
	if _, err := s.publisher.Publish(ctx, s.queueName, data); err != nil {
		s.logger.Error().Err(err).Str("exam_id", exam.ID).Str("queue", s.queueName).Msg("Failed to publish generation job")
		return nil, fmt.Errorf("failed to enqueue generation job: %w", err)
	}

	return exam, nil
}

// GetExam returns the exam with questions, enforcing ownership.
func (s *examService) GetExam(ctx context.Context, examID, userID string) (*model.Exam, error) {
	exam, err := s.repo.GetByID(ctx, examID)
	if err != nil {
		s.logger.Error().Err(err).Str("exam_id", examID).Msg("Failed to fetch exam")
		return nil, err
	}
	if exam == nil {
		return nil, nil
	}
	if exam.UserID != userID {
		return nil, ErrNotOwner
	}
	return exam, nil
}

// ListExams returns the user's exams with pagination.
func (s *examService) ListExams(ctx context.Context, userID string, limit, offset int) ([]model.Exam, error) {
	exams, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list exams")
		return nil, err
	}
	return exams, nil
}

// SubmitAnswers grades answers (a questionID -> optionID map) and records
// the result. Score is the percentage of correctly answered questions.
func (s *examService) SubmitAnswers(ctx context.Context, examID, userID string, answers map[string]string, elapsedSec int) (*model.Exam, error) {
	exam, err := s.repo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	if exam.UserID != userID {
		return nil, ErrNotOwner
	}
	if exam.Status != model.ExamStatusWaitingResponse {
		return nil, fmt.Errorf("exam %s has status %s: %w", examID, exam.Status, ErrNotAwaitingResponses)
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("exam %s has no questions", examID)
	}

	correct := 0
	for _, question := range exam.Questions {
		chosen, ok := answers[question.ID]
		if !ok {
			continue
		}
		for _, opt := range question.Options {
			if opt.ID == chosen && opt.Correct {
				correct++
				break
			}
		}
	}
	score := correct * 100 / len(exam.Questions)

	if err := s.repo.RecordAnswers(ctx, examID, score, elapsedSec); err != nil {
		s.logger.Error().Err(err).Str("exam_id", examID).Msg("Failed to record exam answers")
		return nil, err
	}

	exam.Score = &score
	exam.ElapsedSec = &elapsedSec
	exam.Status = model.ExamStatusAnswered
	return exam, nil
}
