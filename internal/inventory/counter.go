// Package inventory exposes the keyed counter operations used by chat
// commands on top of a store.ItemStore.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// DefaultAmount is applied when a command carries no explicit amount.
const DefaultAmount int64 = 1

// Counter reads and mutates non-negative counters.
type Counter struct {
	items store.ItemStore
	clock clock.Clock
}

// NewCounter creates a counter service over items.
func NewCounter(items store.ItemStore, clk clock.Clock) *Counter {
	return &Counter{
		items: items,
		clock: clk,
	}
}

// Get returns the current count for itemID. ok is false when the item has
// never been touched.
func (c *Counter) Get(ctx context.Context, itemID string) (count int64, ok bool, err error) {
	item, err := c.items.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return item.Count, true, nil
}

// Modify applies op by amount and returns the new count.
func (c *Counter) Modify(ctx context.Context, itemID string, op models.Operation, amount int64) (int64, error) {
	item, err := c.items.Modify(ctx, itemID, op, amount, c.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to %s item %s: %w", op, itemID, err)
	}
	return item.Count, nil
}

// Increment adds DefaultAmount to itemID.
func (c *Counter) Increment(ctx context.Context, itemID string) (int64, error) {
	return c.Modify(ctx, itemID, models.OperationIncrement, DefaultAmount)
}

// Decrement subtracts DefaultAmount from itemID, flooring at zero.
func (c *Counter) Decrement(ctx context.Context, itemID string) (int64, error) {
	return c.Modify(ctx, itemID, models.OperationDecrement, DefaultAmount)
}
