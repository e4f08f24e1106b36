// Package job runs background work on Asynq, a Redis-backed task queue.
//
// The HTTP side enqueues tasks through JobService.Client; the worker side,
// started with Start, routes each task type to a handler.
package job

import (
	"github.com/deppfellow/itembatch/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Queue names and their share of the worker's concurrency.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type JobService struct {
	Client *asynq.Client

	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zerolog.Logger
	runner BatchRunner
}

func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger:   newAsynqLogger(logger),
		LogLevel: asynq.InfoLevel,
	})

	return &JobService{
		Client: asynq.NewClient(redisOpt),
		server: server,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
}

// InitHandlers registers every task handler. It must run before Start.
func (j *JobService) InitHandlers(runner BatchRunner) {
	j.runner = runner
	j.mux.HandleFunc(TaskBatchProcess, j.handleBatchProcessTask)
}

// Start launches the worker in the background and returns immediately.
func (j *JobService) Start() error {
	j.logger.Info().Msg("starting background job server")
	return j.server.Start(j.mux)
}

// Stop waits for in-flight tasks and closes the enqueue client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Warn().Err(err).Msg("failed to close job client")
	}
}
