package store

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// UserStore persists local accounts and their password hashes.
type UserStore interface {
	// Create adds a new user.
	// Returns ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user doesn't exist.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// BindExternalID attaches externalID to the user and records the login time.
	// Any previous binding is overwritten.
	// Returns ErrUserNotFound if the user doesn't exist.
	BindExternalID(ctx context.Context, username, externalID string, at time.Time) error
}
