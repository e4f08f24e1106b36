package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/itembatch/internal/batch"
	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/deppfellow/itembatch/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]model.Item
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]model.Item{}}
}

func (m *memStore) FindAll(context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindAllIDs(ctx context.Context) ([]int64, error) {
	items, _ := m.FindAll(ctx)
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrItemNotFound)
	}
	return &it, nil
}

func (m *memStore) Save(_ context.Context, item *model.Item) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == 0 {
		m.nextID++
		item.ID = m.nextID
	} else if _, ok := m.items[item.ID]; !ok {
		return nil, model.ErrItemNotFound
	}
	m.items[item.ID] = *item
	saved := *item
	return &saved, nil
}

func (m *memStore) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return model.ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

type stubEnqueuer struct {
	requestID string
	err       error
}

func (s *stubEnqueuer) EnqueueBatchProcess(_ context.Context, requestID string) (string, error) {
	s.requestID = requestID
	return "task-1", s.err
}

func newTestService(t *testing.T) (*ItemService, *memStore, *stubEnqueuer) {
	t.Helper()

	logger := zerolog.Nop()
	pool := workerpool.New(4, &logger)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background(), 5*time.Second) })

	store := newMemStore()
	jobs := &stubEnqueuer{}
	coordinator := batch.NewCoordinator(pool, store, &logger, batch.WithDelay(time.Millisecond))

	return NewItemService(store, coordinator, jobs, &logger), store, jobs
}

func TestItemService_CRUD(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &model.Item{ID: 99, Name: "a", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID, "client id is ignored")
	assert.Equal(t, model.StatusNew, created.Status)

	updated, err := svc.Update(ctx, created.ID, &model.Item{Name: "b", Email: "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Name)
	assert.Equal(t, model.StatusNew, updated.Status, "empty status keeps the stored one")

	_, err = svc.Update(ctx, 42, &model.Item{Name: "x"})
	assert.ErrorIs(t, err, model.ErrItemNotFound)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), model.ErrItemNotFound)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemService_ProcessItemsAsync(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for i := range 5 {
		_, err := svc.Create(ctx, &model.Item{Name: fmt.Sprintf("item-%d", i), Email: "x@example.com"})
		require.NoError(t, err)
	}

	items, err := svc.ProcessItemsAsync(ctx).Await(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	stored, _ := store.FindAll(ctx)
	for _, it := range stored {
		assert.True(t, it.IsProcessed(), "item %d", it.ID)
	}
}

func TestItemService_RunBatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	n, err := svc.RunBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Create(ctx, &model.Item{Name: "a", Email: "a@example.com"})
	require.NoError(t, err)

	n, err = svc.RunBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestItemService_EnqueueBatchProcess(t *testing.T) {
	svc, _, jobs := newTestService(t)

	id, err := svc.EnqueueBatchProcess(context.Background(), "req-9")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, "req-9", jobs.requestID)

	jobs.err = errors.New("redis down")
	_, err = svc.EnqueueBatchProcess(context.Background(), "req-10")
	assert.ErrorContains(t, err, "redis down")
}
