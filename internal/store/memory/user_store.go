package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type UserStore struct {
	mu sync.RWMutex

	users map[string]*models.User // username -> User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*models.User),
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrUserAlreadyExists
	}

	s.users[user.Username] = cloneUser(user)
	return nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(user), nil
}

// BindExternalID rebinds the user to externalID and records the login time.
func (s *UserStore) BindExternalID(ctx context.Context, username, externalID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrUserNotFound
	}

	user.ExternalID = &externalID
	user.LastLoginAt = &at
	return nil
}

// cloneUser copies the user including pointer fields so callers can't
// mutate stored state.
func cloneUser(user *models.User) *models.User {
	clone := *user
	if user.ExternalID != nil {
		externalID := *user.ExternalID
		clone.ExternalID = &externalID
	}
	if user.LastLoginAt != nil {
		lastLogin := *user.LastLoginAt
		clone.LastLoginAt = &lastLogin
	}
	return &clone
}
