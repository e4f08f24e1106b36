// Package batch runs "process every known item" jobs on a shared worker pool.
//
// One run:
//  1. snapshots the current item ids from the Store,
//  2. submits one task per id to the pool,
//  3. each task loads the item, does the (simulated) work, marks it
//     PROCESSED and saves it,
//  4. the run settles once every task settled, and resolves to the saved
//     items or fails with the first task error.
//
// Results of concurrent runs are independent: every run owns its accumulator.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/deppfellow/itembatch/internal/model"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultDelay stands in for the real per-item transformation cost.
const DefaultDelay = 100 * time.Millisecond

// Store is the persistence the coordinator needs. Implementations must be
// safe for concurrent use; FindByID reports a missing item with an error
// matching model.ErrItemNotFound.
type Store interface {
	FindAllIDs(ctx context.Context) ([]int64, error)
	FindByID(ctx context.Context, id int64) (*model.Item, error)
	Save(ctx context.Context, item *model.Item) (*model.Item, error)
}

// Submitter accepts work for asynchronous execution. *workerpool.Pool is the
// production implementation.
type Submitter interface {
	Submit(work workerpool.Work) error
}

// Coordinator fans a run out over the pool and fans the outcomes back in.
type Coordinator struct {
	pool   Submitter
	store  Store
	logger *zerolog.Logger
	delay  time.Duration

	// processed counts successful task completions over the coordinator's
	// lifetime. Informational only.
	processed atomic.Int64
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithDelay overrides the simulated per-item processing time.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.delay = d
	}
}

// NewCoordinator builds a Coordinator on top of an existing pool. The pool's
// lifecycle stays with its owner.
func NewCoordinator(pool Submitter, store Store, logger *zerolog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	c := &Coordinator{
		pool:   pool,
		store:  store,
		logger: logger,
		delay:  DefaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Processed returns the number of items successfully processed by all runs.
func (c *Coordinator) Processed() int64 {
	return c.processed.Load()
}

// ProcessAll starts a run over every item id currently in the store.
//
// ctx only bounds the id snapshot query. Tasks run under the pool's context,
// so a caller abandoning the returned future does not cancel the run.
//
// The future resolves with the processed items in completion order, or fails
// with a *BatchError once every task has settled. Work already saved by
// successful tasks is not rolled back on failure.
func (c *Coordinator) ProcessAll(ctx context.Context) *workerpool.Future[[]model.Item] {
	ids, err := c.store.FindAllIDs(ctx)
	if err != nil {
		return workerpool.Failed[[]model.Item](fmt.Errorf("failed to list item ids: %w", err))
	}

	if len(ids) == 0 {
		c.logger.Debug().Msg("no items to process")
		return workerpool.Resolved([]model.Item{})
	}

	r := &run{
		id:      uuid.NewString(),
		started: time.Now(),
		acc:     newAccumulator(len(ids)),
	}

	logger := c.logger.With().
		Str("run_id", r.id).
		Int("items", len(ids)).
		Logger()

	logger.Info().Msg("batch run started")

	tasks := make([]*workerpool.Future[struct{}], len(ids))
	for i, id := range ids {
		task := workerpool.NewFuture[struct{}]()
		tasks[i] = task

		err := c.pool.Submit(func(ctx context.Context) {
			c.runTask(ctx, r, id, task)
		})
		if err != nil {
			task.Reject(&TaskError{ID: id, Err: err})
		}
	}

	result := workerpool.NewFuture[[]model.Item]()

	workerpool.AllSettled(tasks...).OnSettled(func(_ []struct{}, cause error) {
		if cause != nil {
			batchErr := newBatchError(ids, tasks, cause)

			logger.Error().
				Err(cause).
				Int("failed", len(batchErr.Failures)).
				Int64("processed", r.completed.Load()).
				Dur("duration", time.Since(r.started)).
				Msg("batch run failed")

			result.Reject(batchErr)
			return
		}

		items := r.acc.snapshot()

		logger.Info().
			Int("processed", len(items)).
			Dur("duration", time.Since(r.started)).
			Msg("batch run completed")

		result.Resolve(items)
	})

	return result
}

// run is the state shared by the tasks of one ProcessAll call.
type run struct {
	id        string
	started   time.Time
	acc       *accumulator
	completed atomic.Int64
}

// runTask settles task with the outcome of processing one id.
func (c *Coordinator) runTask(ctx context.Context, r *run, id int64, task *workerpool.Future[struct{}]) {
	defer func() {
		if rec := recover(); rec != nil {
			err := pkgerrors.Errorf("panic: %v", rec)
			c.logger.Error().Stack().Err(err).Str("run_id", r.id).Int64("item_id", id).Msg("item processing panicked")
			task.Reject(&TaskError{ID: id, Err: err})
		}
	}()

	if err := c.processItem(ctx, r, id); err != nil {
		c.logger.Warn().
			Str("run_id", r.id).
			Int64("item_id", id).
			Err(err).
			Msg("item processing failed")

		task.Reject(&TaskError{ID: id, Err: err})
		return
	}

	task.Resolve(struct{}{})
}

func (c *Coordinator) processItem(ctx context.Context, r *run, id int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("processing interrupted: %w", err)
	}

	item, err := c.store.FindByID(ctx, id)
	if errors.Is(err, model.ErrItemNotFound) || (err == nil && item == nil) {
		// Deleted after the snapshot was taken.
		c.logger.Debug().Str("run_id", r.id).Int64("item_id", id).Msg("item vanished, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}

	if err := pause(ctx, c.delay); err != nil {
		return fmt.Errorf("processing interrupted: %w", err)
	}

	item.Status = model.StatusProcessed

	saved, err := c.store.Save(ctx, item)
	if errors.Is(err, model.ErrItemNotFound) {
		// Deleted while it was being processed.
		c.logger.Debug().Str("run_id", r.id).Int64("item_id", id).Msg("item vanished before save, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	if !saved.IsProcessed() {
		return fmt.Errorf("item saved with status %q, want %q", saved.Status, model.StatusProcessed)
	}

	if r.acc.add(*saved) {
		r.completed.Add(1)
		c.processed.Add(1)
	}

	return nil
}

// pause waits for d unless ctx is cancelled first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
