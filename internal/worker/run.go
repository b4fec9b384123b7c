package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/config"
	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/pgmq"
	"github.com/justAlves/estudeai-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// Run starts the generation worker on the pgmq queue. One message is
// processed at a time; the message is acknowledged (deleted) only after
// processing completes, so a crash mid-processing redelivers it. Messages
// that exhaust the retry budget are persisted to the dead-letter table and
// archived.
func Run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, client *pgmq.Client, dlqRepo repository.DLQRepository, processor *Processor) error {
	logger.Info().Str("queue", cfg.GenerationQueueName).Msg("Starting generation worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down generation worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, cfg.GenerationQueueName, cfg.GenerationPollTimeoutSec, cfg.GenerationPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading generation queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		logger.Info().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCount).Msg("Received generation job")

		if err := processor.Process(ctx, msg.Data); err != nil {
			logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error processing generation job")
			if msg.ReadCount >= cfg.GenerationMaxRetries {
				deadLetter(ctx, cfg, logger, client, dlqRepo, msg, err)
			}
			// Otherwise leave the message invisible until its visibility
			// timeout expires and it is redelivered.
			continue
		}

		if err := client.Delete(ctx, cfg.GenerationQueueName, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error acknowledging generation message")
		}
	}
}

// deadLetter records the poisoned message and removes it from the queue.
func deadLetter(ctx context.Context, cfg *config.Config, logger zerolog.Logger, client *pgmq.Client, dlqRepo repository.DLQRepository, msg *pgmq.Message, procErr error) {
	logger.Warn().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCount).Msg("Retry budget exhausted, dead-lettering message")
	lastError := procErr.Error()
	dlm := &model.DeadLetterMessage{
		QueueName: cfg.GenerationQueueName,
		MessageID: strconv.FormatInt(msg.ID, 10),
		Payload:   string(msg.Data),
		LastError: &lastError,
		Status:    "failed",
	}
	if err := dlqRepo.Create(ctx, dlm); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to persist dead-letter message")
		return
	}
	if err := client.Archive(ctx, cfg.GenerationQueueName, msg.ID); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to archive dead-lettered message")
	}
}
