package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/repository"
	"github.com/justAlves/estudeai-sub000/internal/service"

	"github.com/rs/zerolog"
)

// Processor turns a job message into persisted generation results. It is
// broker-agnostic: both the pgmq poll loop and the Pub/Sub subscriber feed
// raw payloads into Process.
type Processor struct {
	examRepo  repository.ExamRepository
	essayRepo repository.EssayRepository
	generator service.GenerationClient
	logger    zerolog.Logger
}

// NewProcessor creates a Processor with a scoped logger.
func NewProcessor(examRepo repository.ExamRepository, essayRepo repository.EssayRepository, generator service.GenerationClient, logger zerolog.Logger) *Processor {
	return &Processor{
		examRepo:  examRepo,
		essayRepo: essayRepo,
		generator: generator,
		logger:    logger.With().Str("service", "Worker").Logger(),
	}
}

// Process dispatches one message. A returned error means the message should
// be redelivered (or dead-lettered once the retry budget is spent).
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var job model.JobMessage
	if err := json.Unmarshal(data, &job); err != nil {
		// A payload that never parses will never succeed; report it so the
		// retry budget dead-letters it instead of looping forever.
		return fmt.Errorf("unmarshal job message: %w", err)
	}

	switch job.Kind {
	case model.JobKindGenerateQuestions:
		return p.generateQuestions(ctx, job)
	case model.JobKindCorrectEssay:
		return p.correctEssay(ctx, job)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

// generateQuestions fills a pending exam with AI-generated questions and
// advances it to waiting_response. Delivery is at-least-once, so an exam
// already past pending is a redelivery and is skipped.
func (p *Processor) generateQuestions(ctx context.Context, job model.JobMessage) error {
	exam, err := p.examRepo.GetByID(ctx, job.ExamID)
	if err != nil {
		return fmt.Errorf("fetch exam %s: %w", job.ExamID, err)
	}
	if exam == nil {
		p.logger.Warn().Str("exam_id", job.ExamID).Msg("Generation job references missing exam, dropping")
		return nil
	}
	if exam.Status != model.ExamStatusPending {
		p.logger.Info().Str("exam_id", job.ExamID).Str("status", exam.Status).Msg("Exam already processed, skipping redelivery")
		return nil
	}

	generated, err := p.generator.GenerateQuestions(ctx, job.Subject, job.Bank, job.QuestionCount)
	if err != nil {
		// Exams have no failure terminal status: the exam stays pending and
		// the message is retried or dead-lettered.
		p.logger.Error().Err(err).Str("exam_id", job.ExamID).Msg("Question generation failed")
		return err
	}

	questions := make([]model.Question, 0, len(generated.Questions))
	for _, gq := range generated.Questions {
		question := model.Question{Statement: gq.Statement}
		for _, opt := range gq.Options {
			question.Options = append(question.Options, model.QuestionOption{Text: opt.Text, Correct: opt.Correct})
		}
		questions = append(questions, question)
	}

	if err := p.examRepo.SaveGenerated(ctx, job.ExamID, generated.Title, generated.Description, questions); err != nil {
		p.logger.Error().Err(err).Str("exam_id", job.ExamID).Msg("Failed to persist generated questions")
		return err
	}
	p.logger.Info().Str("exam_id", job.ExamID).Int("questions", len(questions)).Msg("Exam questions generated")
	return nil
}

// correctEssay writes a correction for an essay and marks it corrected.
// Any generation or persistence failure moves the essay to its error
// terminal status, best-effort.
func (p *Processor) correctEssay(ctx context.Context, job model.JobMessage) error {
	essay, err := p.essayRepo.GetByID(ctx, job.EssayID)
	if err != nil {
		return fmt.Errorf("fetch essay %s: %w", job.EssayID, err)
	}
	if essay == nil {
		p.logger.Warn().Str("essay_id", job.EssayID).Msg("Correction job references missing essay, dropping")
		return nil
	}
	if essay.Status == model.EssayStatusCorrected || essay.Status == model.EssayStatusError {
		p.logger.Info().Str("essay_id", job.EssayID).Str("status", essay.Status).Msg("Essay already terminal, skipping redelivery")
		return nil
	}

	result, err := p.generator.CorrectEssay(ctx, job.Content, job.Theme, job.Bank)
	if err != nil {
		p.logger.Error().Err(err).Str("essay_id", job.EssayID).Msg("Essay correction failed")
		p.markEssayError(ctx, job.EssayID)
		return err
	}
	if len(result.Competencies) != 5 {
		p.logger.Error().Str("essay_id", job.EssayID).Int("competencies", len(result.Competencies)).Msg("Correction is missing competencies")
		p.markEssayError(ctx, job.EssayID)
		return fmt.Errorf("correction for essay %s has %d competencies, want 5", job.EssayID, len(result.Competencies))
	}

	correction := &model.EssayCorrection{
		EssayID:     job.EssayID,
		Competency1: result.Competencies[0].Score,
		Competency2: result.Competencies[1].Score,
		Competency3: result.Competencies[2].Score,
		Competency4: result.Competencies[3].Score,
		Competency5: result.Competencies[4].Score,
		Total:       result.Total,
		Feedback1:   result.Competencies[0].Feedback,
		Feedback2:   result.Competencies[1].Feedback,
		Feedback3:   result.Competencies[2].Feedback,
		Feedback4:   result.Competencies[3].Feedback,
		Feedback5:   result.Competencies[4].Feedback,
		Overall:     result.Overall,
	}
	if err := p.essayRepo.SaveCorrection(ctx, correction); err != nil {
		p.logger.Error().Err(err).Str("essay_id", job.EssayID).Msg("Failed to persist essay correction")
		p.markEssayError(ctx, job.EssayID)
		return err
	}
	p.logger.Info().Str("essay_id", job.EssayID).Int("total", result.Total).Msg("Essay corrected")
	return nil
}

func (p *Processor) markEssayError(ctx context.Context, essayID string) {
	// If this update fails too, the essay is stranded in correcting.
	if err := p.essayRepo.UpdateStatus(ctx, essayID, model.EssayStatusError); err != nil {
		p.logger.Error().Err(err).Str("essay_id", essayID).Msg("Failed to mark essay as errored")
	}
}
