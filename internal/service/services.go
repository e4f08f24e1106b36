package service

import (
	"github.com/deppfellow/itembatch/internal/batch"
	"github.com/deppfellow/itembatch/internal/lib/job"
	"github.com/deppfellow/itembatch/internal/repository"
	"github.com/deppfellow/itembatch/internal/server"
)

type Services struct {
	Item *ItemService
	Job  *job.JobService
}

// NewService builds every service and registers the job handlers that
// depend on them.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	coordinator := batch.NewCoordinator(s.Pool, repos.Items, s.Logger,
		batch.WithDelay(s.Config.Batch.ProcessingDelay))

	itemService := NewItemService(repos.Items, coordinator, s.Job, s.Logger)
	s.Job.InitHandlers(itemService)

	return &Services{
		Item: itemService,
		Job:  s.Job,
	}, nil
}
