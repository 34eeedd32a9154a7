package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// ItemStore implements store.ItemStore using in-memory storage.
// A single lock serialises all modifications.
type ItemStore struct {
	mu sync.RWMutex

	items map[string]*models.Item // item_id -> Item
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items: make(map[string]*models.Item),
	}
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, itemID string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrItemNotFound
	}

	clone := *item
	return &clone, nil
}

// Modify applies op to the item, creating it on first touch.
func (s *ItemStore) Modify(ctx context.Context, itemID string, op models.Operation, amount int64, at time.Time) (*models.Item, error) {
	if err := store.ValidateModify(op, amount); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[itemID]
	if !exists {
		item = &models.Item{
			ItemID:    itemID,
			Name:      itemID,
			CreatedAt: at,
		}
		s.items[itemID] = item
	}

	item.Count = models.Apply(item.Count, op, amount)
	item.UpdatedAt = at

	clone := *item
	return &clone, nil
}

// List returns all items, most recently updated first.
func (s *ItemStore) List(ctx context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(), nil
}

// caller must hold mu
func (s *ItemStore) list() []*models.Item {
	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		clone := *item
		items = append(items, &clone)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ItemID < items[j].ItemID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	return items
}
