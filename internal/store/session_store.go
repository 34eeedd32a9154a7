package store

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// SessionStore persists time-bounded sessions keyed by external identity.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// LatestActive returns the most recently created session for externalID
	// that is still valid at now. Ties on CreatedAt are broken by insertion
	// order, latest wins.
	// Returns ErrSessionNotFound if there is none.
	LatestActive(ctx context.Context, externalID string, now time.Time) (*models.Session, error)

	// DeleteExpired deletes all sessions expired at now (cleanup job).
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
