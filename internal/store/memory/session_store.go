package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type SessionStore struct {
	mu sync.RWMutex

	// external_id -> sessions in insertion order
	sessionsByExternalID map[string][]*models.Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessionsByExternalID: make(map[string][]*models.Session),
	}
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *session
	s.sessionsByExternalID[session.ExternalID] = append(s.sessionsByExternalID[session.ExternalID], &clone)

	return nil
}

// LatestActive returns the newest session for externalID that is valid at now.
func (s *SessionStore) LatestActive(ctx context.Context, externalID string, now time.Time) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Session
	for _, session := range s.sessionsByExternalID[externalID] {
		if !session.IsValidAt(now) {
			continue
		}
		// later insertions win ties
		if latest == nil || !session.CreatedAt.Before(latest.CreatedAt) {
			latest = session
		}
	}

	if latest == nil {
		return nil, store.ErrSessionNotFound
	}

	clone := *latest
	return &clone, nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for externalID, sessions := range s.sessionsByExternalID {
		kept := sessions[:0]
		for _, session := range sessions {
			if session.IsValidAt(now) {
				kept = append(kept, session)
				continue
			}
			count++
		}
		// Clean up empty entries
		if len(kept) == 0 {
			delete(s.sessionsByExternalID, externalID)
			continue
		}
		s.sessionsByExternalID[externalID] = kept
	}

	return count, nil
}
