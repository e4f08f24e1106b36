package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/itembatch/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repository uses. A pgx.Tx also
// satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ItemRepository stores items in the items table. It is safe for
// concurrent use; every call borrows its own pooled connection.
type ItemRepository struct {
	db DBTX
}

func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, name, description, status, email`

func (r *ItemRepository) FindAll(ctx context.Context) ([]model.Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Item])
	if err != nil {
		return nil, fmt.Errorf("scanning items: %w", err)
	}
	return items, nil
}

// FindAllIDs returns every item id in ascending order.
func (r *ItemRepository) FindAllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying item ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning item ids: %w", err)
	}
	return ids, nil
}

// FindByID returns model.ErrItemNotFound when no row matches.
func (r *ItemRepository) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying item %d: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Item])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item %d: %w", id, err)
	}
	return item, nil
}

// Save inserts items with a zero ID and updates the others, returning the
// stored row. New items without a status start as NEW. Updating an id that
// no longer exists returns model.ErrItemNotFound.
func (r *ItemRepository) Save(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item.ID == 0 {
		return r.insert(ctx, item)
	}
	return r.update(ctx, item)
}

func (r *ItemRepository) insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	status := item.Status
	if status == "" {
		status = model.StatusNew
	}

	rows, err := r.db.Query(ctx, `
		INSERT INTO items (name, description, status, email)
		VALUES (@name, @description, @status, @email)
		RETURNING `+itemColumns,
		pgx.NamedArgs{
			"name":        item.Name,
			"description": item.Description,
			"status":      status,
			"email":       item.Email,
		})
	if err != nil {
		return nil, fmt.Errorf("inserting item: %w", err)
	}

	saved, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Item])
	if err != nil {
		return nil, fmt.Errorf("inserting item: %w", err)
	}
	return saved, nil
}

func (r *ItemRepository) update(ctx context.Context, item *model.Item) (*model.Item, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE items
		SET name = @name,
			description = @description,
			status = @status,
			email = @email,
			updated_at = now()
		WHERE id = @id
		RETURNING `+itemColumns,
		pgx.NamedArgs{
			"id":          item.ID,
			"name":        item.Name,
			"description": item.Description,
			"status":      item.Status,
			"email":       item.Email,
		})
	if err != nil {
		return nil, fmt.Errorf("updating item %d: %w", item.ID, err)
	}

	saved, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Item])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", item.ID, model.ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("updating item %d: %w", item.ID, err)
	}
	return saved, nil
}

// DeleteByID returns model.ErrItemNotFound when nothing was deleted.
func (r *ItemRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, model.ErrItemNotFound)
	}
	return nil
}
