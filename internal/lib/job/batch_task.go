package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskBatchProcess asks the worker to run one batch over every item.
const TaskBatchProcess = "items:batch_process"

// BatchProcessPayload travels with TaskBatchProcess. RequestID ties the run
// back to the HTTP request that enqueued it.
type BatchProcessPayload struct {
	RequestID string `json:"request_id"`
}

// NewBatchProcessTask builds a batch task. A run can take a while on a big
// table, hence the generous timeout.
func NewBatchProcessTask(requestID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BatchProcessPayload{RequestID: requestID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskBatchProcess,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueDefault),
		asynq.Timeout(10*time.Minute),
	), nil
}

// EnqueueBatchProcess schedules a batch run and returns the Asynq task id.
func (j *JobService) EnqueueBatchProcess(ctx context.Context, requestID string) (string, error) {
	task, err := NewBatchProcessTask(requestID)
	if err != nil {
		return "", err
	}

	info, err := j.Client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}

	j.logger.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("request_id", requestID).
		Msg("enqueued batch process task")

	return info.ID, nil
}
