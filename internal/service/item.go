package service

import (
	"context"
	"fmt"

	"github.com/deppfellow/itembatch/internal/batch"
	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/deppfellow/itembatch/internal/model"
	"github.com/rs/zerolog"
)

// ItemStore is the repository surface ItemService needs.
type ItemStore interface {
	batch.Store
	FindAll(ctx context.Context) ([]model.Item, error)
	DeleteByID(ctx context.Context, id int64) error
}

// BatchEnqueuer schedules background batch runs.
type BatchEnqueuer interface {
	EnqueueBatchProcess(ctx context.Context, requestID string) (string, error)
}

type ItemService struct {
	store       ItemStore
	coordinator *batch.Coordinator
	jobs        BatchEnqueuer
	logger      *zerolog.Logger
}

func NewItemService(store ItemStore, coordinator *batch.Coordinator, jobs BatchEnqueuer, logger *zerolog.Logger) *ItemService {
	return &ItemService{
		store:       store,
		coordinator: coordinator,
		jobs:        jobs,
		logger:      logger,
	}
}

func (s *ItemService) List(ctx context.Context) ([]model.Item, error) {
	return s.store.FindAll(ctx)
}

func (s *ItemService) Get(ctx context.Context, id int64) (*model.Item, error) {
	return s.store.FindByID(ctx, id)
}

// Create stores a new item. Any client-supplied id is ignored.
func (s *ItemService) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	item.ID = 0
	if item.Status == "" {
		item.Status = model.StatusNew
	}

	created, err := s.store.Save(ctx, item)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", created.ID).Msg("item created")
	return created, nil
}

// Update replaces the item stored under id. An empty status keeps the
// current one.
func (s *ItemService) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	item.ID = id
	if item.Status == "" {
		item.Status = existing.Status
	}

	return s.store.Save(ctx, item)
}

func (s *ItemService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("item_id", id).Msg("item deleted")
	return nil
}

// ProcessItemsAsync starts a batch run over every stored item. The
// returned future settles when the whole run has.
func (s *ItemService) ProcessItemsAsync(ctx context.Context) *workerpool.Future[[]model.Item] {
	return s.coordinator.ProcessAll(ctx)
}

// RunBatch runs one batch and waits for it. It is the entry point of the
// background batch task.
func (s *ItemService) RunBatch(ctx context.Context) (int, error) {
	items, err := s.ProcessItemsAsync(ctx).Await(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch run: %w", err)
	}
	return len(items), nil
}

// EnqueueBatchProcess schedules a batch run on the job queue and returns
// the task id.
func (s *ItemService) EnqueueBatchProcess(ctx context.Context, requestID string) (string, error) {
	id, err := s.jobs.EnqueueBatchProcess(ctx, requestID)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue batch run: %w", err)
	}
	return id, nil
}
