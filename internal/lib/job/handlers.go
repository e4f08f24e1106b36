package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/hibiken/asynq"
)

// BatchRunner runs one batch to completion and reports how many items it
// processed.
type BatchRunner interface {
	RunBatch(ctx context.Context) (int, error)
}

func (j *JobService) handleBatchProcessTask(ctx context.Context, t *asynq.Task) error {
	var p BatchProcessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal batch payload: %w: %w", err, asynq.SkipRetry)
	}

	log := j.logger.With().
		Str("type", TaskBatchProcess).
		Str("request_id", p.RequestID).
		Logger()

	log.Info().Msg("processing batch task")

	n, err := j.runner.RunBatch(ctx)
	if errors.Is(err, workerpool.ErrPoolClosed) {
		log.Warn().Err(err).Msg("worker pool closed, dropping batch task")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		log.Error().Err(err).Msg("batch task failed")
		return err
	}

	log.Info().Int("processed", n).Msg("batch task completed")
	return nil
}
