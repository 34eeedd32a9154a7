package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const itemColumns = `item_id, name, count, created_at, updated_at`

// ItemStore implements store.ItemStore using SQLite.
type ItemStore struct {
	pool *Pool
}

// NewItemStore creates a new SQLite-backed item store.
func NewItemStore(pool *Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, itemID string) (*models.Item, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	var item *models.Item
	err = sqlitex.Execute(conn, `SELECT `+itemColumns+` FROM items WHERE item_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{itemID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				item = readItem(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if item == nil {
		return nil, store.ErrItemNotFound
	}

	return item, nil
}

// Modify applies op to the item, creating it on first touch. The upsert is
// a single statement so concurrent writers serialise on the database lock.
func (s *ItemStore) Modify(ctx context.Context, itemID string, op models.Operation, amount int64, at time.Time) (*models.Item, error) {
	if err := store.ValidateModify(op, amount); err != nil {
		return nil, err
	}

	delta := amount
	if op == models.OperationDecrement {
		delta = -amount
	}

	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	var item *models.Item
	err = sqlitex.Execute(conn, `
		INSERT INTO items (item_id, name, count, created_at, updated_at)
		VALUES (?1, ?1, max(0, ?2), ?3, ?3)
		ON CONFLICT (item_id) DO UPDATE
		SET count = max(0, items.count + ?2),
			updated_at = excluded.updated_at
		RETURNING `+itemColumns,
		&sqlitex.ExecOptions{
			Args: []any{itemID, delta, toNanos(at)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				item = readItem(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to modify item: %w", err)
	}

	log.Debug().
		Str("item_id", itemID).
		Str("operation", string(op)).
		Int64("count", item.Count).
		Msg("Modified item")

	return item, nil
}

// List returns all items, most recently updated first.
func (s *ItemStore) List(ctx context.Context) ([]*models.Item, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	return listItems(conn)
}

func listItems(conn *sqlite.Conn) ([]*models.Item, error) {
	var items []*models.Item
	err := sqlitex.Execute(conn, `SELECT `+itemColumns+` FROM items ORDER BY updated_at DESC, item_id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				items = append(items, readItem(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return items, nil
}

func readItem(stmt *sqlite.Stmt) *models.Item {
	return &models.Item{
		ItemID:    stmt.ColumnText(0),
		Name:      stmt.ColumnText(1),
		Count:     stmt.ColumnInt64(2),
		CreatedAt: fromNanos(stmt.ColumnInt64(3)),
		UpdatedAt: fromNanos(stmt.ColumnInt64(4)),
	}
}
