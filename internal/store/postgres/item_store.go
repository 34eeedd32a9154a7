package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// ItemStore implements store.ItemStore using PostgreSQL.
// Modify is a single upsert so concurrent callers never lose an update.
type ItemStore struct {
	pool *pgxpool.Pool
}

// NewItemStore creates a new PostgreSQL-backed item store.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{
		pool: pool,
	}
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, itemID string) (*models.Item, error) {
	query := `
		SELECT item_id, name, count, created_at, updated_at
		FROM items
		WHERE item_id = $1
	`

	item, err := scanItem(s.pool.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", mapPostgresError(err))
	}

	return item, nil
}

// Modify applies op to the item, creating it on first touch.
func (s *ItemStore) Modify(ctx context.Context, itemID string, op models.Operation, amount int64, at time.Time) (*models.Item, error) {
	if err := store.ValidateModify(op, amount); err != nil {
		return nil, err
	}

	delta := amount
	if op == models.OperationDecrement {
		delta = -amount
	}

	query := `
		INSERT INTO items (item_id, name, count, created_at, updated_at)
		VALUES ($1, $1, GREATEST(0, $2::bigint), $3, $3)
		ON CONFLICT (item_id) DO UPDATE
		SET count = GREATEST(0, items.count + $2::bigint),
			updated_at = EXCLUDED.updated_at
		RETURNING item_id, name, count, created_at, updated_at
	`

	item, err := scanItem(s.pool.QueryRow(ctx, query, itemID, delta, at))
	if err != nil {
		return nil, fmt.Errorf("failed to modify item: %w", mapPostgresError(err))
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
	return listItems(ctx, s.pool)
}

func listItems(ctx context.Context, q querier) ([]*models.Item, error) {
	query := `
		SELECT item_id, name, count, created_at, updated_at
		FROM items
		ORDER BY updated_at DESC, item_id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	if err := row.Scan(&item.ItemID, &item.Name, &item.Count, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}
