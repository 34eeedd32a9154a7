package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

const tokenBytes = 32

// Ledger issues and checks time-bounded sessions keyed by external identity.
type Ledger struct {
	sessions store.SessionStore
	clock    clock.Clock
	ttl      time.Duration
}

// NewLedger creates a session ledger. A non-positive ttl uses DefaultSessionTTL.
func NewLedger(sessions store.SessionStore, clk clock.Clock, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Ledger{
		sessions: sessions,
		clock:    clk,
		ttl:      ttl,
	}
}

// TTL returns the configured session lifetime.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue creates a new session for externalID and returns its token.
func (l *Ledger) Issue(ctx context.Context, externalID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	now := l.clock.Now()
	session := &models.Session{
		SessionID:  sessionID,
		ExternalID: externalID,
		Token:      token,
		CreatedAt:  now,
		ExpiresAt:  now.Add(l.ttl),
	}

	if err := l.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to issue session: %w", err)
	}

	return token, nil
}

// IsAuthenticated reports whether externalID has a session valid now.
// Store errors are logged and treated as unauthenticated.
func (l *Ledger) IsAuthenticated(ctx context.Context, externalID string) bool {
	_, err := l.sessions.LatestActive(ctx, externalID, l.clock.Now())
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			log.Error().Err(err).Str("external_id", externalID).Msg("Failed to look up session")
		}
		return false
	}
	return true
}

// PruneExpired removes sessions that expired before now.
func (l *Ledger) PruneExpired(ctx context.Context) (int, error) {
	return l.sessions.DeleteExpired(ctx, l.clock.Now())
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base58.Encode(buf), nil
}
