package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated messaging identity.
// Sessions are never revoked; expiry is the only way a session ends.
type Session struct {
	SessionID  uuid.UUID // UUIDv7
	ExternalID string    // Sender identity on the messaging platform
	Token      string    // Opaque base58 token

	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsValidAt reports whether the session is still valid at the given time.
// A session is valid while now < ExpiresAt.
func (s *Session) IsValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
