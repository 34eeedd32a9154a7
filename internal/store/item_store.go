package store

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// ItemStore persists keyed non-negative counters.
type ItemStore interface {
	// Get retrieves an item by ID.
	// Returns ErrItemNotFound if the item doesn't exist.
	Get(ctx context.Context, itemID string) (*models.Item, error)

	// Modify atomically applies op to the item's count and returns the
	// updated item. An unseen itemID is created with the result of applying
	// op to zero. Decrements never take the count below zero.
	Modify(ctx context.Context, itemID string, op models.Operation, amount int64, at time.Time) (*models.Item, error)

	// List returns all items, most recently updated first.
	List(ctx context.Context) ([]*models.Item, error)
}

// ValidateModify checks the arguments shared by every Modify implementation.
func ValidateModify(op models.Operation, amount int64) error {
	if !op.Valid() {
		return ErrInvalidOperation
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
