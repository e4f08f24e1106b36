package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/deppfellow/itembatch/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDatabaseURLEnv names a throwaway database the integration tests may
// truncate. The tests are skipped when it is unset.
const testDatabaseURLEnv = "ITEMS_TEST_DATABASE_URL"

const testSchema = `
CREATE TABLE IF NOT EXISTS items (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT        NOT NULL,
    description TEXT        NOT NULL DEFAULT '',
    status      TEXT        NOT NULL DEFAULT 'NEW',
    email       TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
TRUNCATE items RESTART IDENTITY;`

func newTestRepository(t *testing.T) *ItemRepository {
	t.Helper()

	url := os.Getenv(testDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseURLEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return NewItemRepository(pool)
}

func TestItemRepository_CRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Save(ctx, &model.Item{Name: "widget", Email: "a@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.StatusNew, created.Status)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	found.Status = model.StatusProcessed
	updated, err := repo.Save(ctx, found)
	require.NoError(t, err)
	assert.True(t, updated.IsProcessed())

	ids, err := repo.FindAllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, ids)

	require.NoError(t, repo.DeleteByID(ctx, created.ID))

	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, model.ErrItemNotFound)
	assert.ErrorIs(t, repo.DeleteByID(ctx, created.ID), model.ErrItemNotFound)

	_, err = repo.Save(ctx, updated)
	assert.ErrorIs(t, err, model.ErrItemNotFound, "updating a deleted row")

	items, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemRepository_ConcurrentSaves(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Save(ctx, &model.Item{Name: "n", Email: "c@example.com"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids, err := repo.FindAllIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}
