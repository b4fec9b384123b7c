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

// ErrAlreadySubmitted is returned when a correction is requested for an
// essay that already left the pending status.
var ErrAlreadySubmitted = errors.New("essay was already submitted")

// EssayService defines essay-related operations.
type EssayService interface {
	// CreateEssay saves the essay in pending status without queueing
	// anything; correction is requested separately.
	CreateEssay(ctx context.Context, userID, theme, bank, content string) (*model.Essay, error)
	// SubmitForCorrection runs admission, enqueues the correction job and
	// advances the essay to correcting.
	SubmitForCorrection(ctx context.Context, essayID, userID string) (*model.Essay, error)
	GetEssay(ctx context.Context, essayID, userID string) (*model.Essay, error)
	ListEssays(ctx context.Context, userID string, limit, offset int) ([]model.Essay, error)
}

type essayService struct {
	repo      repository.EssayRepository
	subSvc    SubscriptionService
	publisher pubsub.Publisher
	queueName string
	logger    zerolog.Logger
}

// NewEssayService creates a new EssayService.
func NewEssayService(repo repository.EssayRepository, subSvc SubscriptionService, publisher pubsub.Publisher, queueName string, logger zerolog.Logger) EssayService {
	return &essayService{
		repo:      repo,
		subSvc:    subSvc,
		publisher: publisher,
		queueName: queueName,
		logger:    logger.With().Str("service", "EssayService").Logger(),
	}
}

// CreateEssay persists the essay in pending status.
func (s *essayService) CreateEssay(ctx context.Context, userID, theme, bank, content string) (*model.Essay, error) {
	essay := &model.Essay{
		UserID:  userID,
		Theme:   theme,
		Bank:    bank,
		Content: content,
		Status:  model.EssayStatusPending,
	}
	essay, err := s.repo.Create(ctx, essay)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create essay record")
		return nil, fmt.Errorf("failed to create essay: %w", err)
	}
	return essay, nil
}

// SubmitForCorrection is the quota-gated dispatch path for corrections.
func (s *essayService) SubmitForCorrection(ctx context.Context, essayID, userID string) (*model.Essay, error) {
	essay, err := s.repo.GetByID(ctx, essayID)
	if err != nil {
		return nil, err
	}
	if essay == nil {
		return nil, fmt.Errorf("essay %s: %w", essayID, ErrNotFound)
	}
	if essay.UserID != userID {
		return nil, ErrNotOwner
	}
	if essay.Status != model.EssayStatusPending {
		return nil, fmt.Errorf("essay %s has status %s: %w", essayID, essay.Status, ErrAlreadySubmitted)
	}

	if err := s.subSvc.ConsumeQuota(ctx, userID, model.ResourceTypeEssay); err != nil {
		return nil, err
	}

	job := model.JobMessage{
		Kind:    model.JobKindCorrectEssay,
		EssayID: essay.ID,
		Theme:   essay.Theme,
		Bank:    essay.Bank,
		Content: essay.Content,
	}
	data, err := json.Marshal(job)
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", essay.ID).Msg("Failed to marshal correction job")
		return nil, fmt.Errorf("failed to marshal correction job: %w", err)
	}
	if _, err := s.publisher.Publish(ctx, s.queueName, data); err != nil {
		s.logger.Error().Err(err).Str("essay_id", essay.ID).Str("queue", s.queueName).Msg("Failed to publish correction job")
		return nil, fmt.Errorf("failed to enqueue correction job: %w", err)
	}

	// The worker's terminal update is authoritative: if this transition
	// fails the job still runs, the essay just reads pending meanwhile.
	if err := s.repo.UpdateStatus(ctx, essay.ID, model.EssayStatusCorrecting); err != nil {
		s.logger.Error().Err(err).Str("essay_id", essay.ID).Msg("Failed to mark essay correcting after enqueue")
		return nil, fmt.Errorf("failed to update essay status: %w", err)
	}
	essay.Status = model.EssayStatusCorrecting
	return essay, nil
}

// GetEssay returns the essay with its correction, enforcing ownership.
func (s *essayService) GetEssay(ctx context.Context, essayID, userID string) (*model.Essay, error) {
	essay, err := s.repo.GetByID(ctx, essayID)
	if err != nil {
		s.logger.Error().Err(err).Str("essay_id", essayID).Msg("Failed to fetch essay")
		return nil, err
	}
	if essay == nil {
		return nil, nil
	}
	if essay.UserID != userID {
		return nil, ErrNotOwner
	}
	return essay, nil
}

// ListEssays returns the user's essays with pagination.
func (s *essayService) ListEssays(ctx context.Context, userID string, limit, offset int) ([]model.Essay, error) {
	essays, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list essays")
		return nil, err
	}
	return essays, nil
}
