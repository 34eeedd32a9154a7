package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SessionStore implements store.SessionStore using SQLite.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SQLite-backed session store.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create creates a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.inner.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO user_sessions (session_id, external_id, session_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				session.SessionID.String(),
				session.ExternalID,
				session.Token,
				toNanos(session.ExpiresAt),
				toNanos(session.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("external_id", session.ExternalID).
		Msg("Created session")

	return nil
}

// LatestActive returns the newest session for externalID that is valid at now.
func (s *SessionStore) LatestActive(ctx context.Context, externalID string, now time.Time) (*models.Session, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	var session *models.Session
	err = sqlitex.Execute(conn, `
		SELECT session_id, external_id, session_token, created_at, expires_at
		FROM user_sessions
		WHERE external_id = ? AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{externalID, toNanos(now)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sessionID, err := uuid.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("invalid session id: %w", err)
				}
				session = &models.Session{
					SessionID:  sessionID,
					ExternalID: stmt.ColumnText(1),
					Token:      stmt.ColumnText(2),
					CreatedAt:  fromNanos(stmt.ColumnInt64(3)),
					ExpiresAt:  fromNanos(stmt.ColumnInt64(4)),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session == nil {
		return nil, store.ErrSessionNotFound
	}

	return session, nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.inner.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM user_sessions WHERE expires_at <= ?`,
		&sqlitex.ExecOptions{Args: []any{toNanos(now)}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count := conn.Changes()
	if count > 0 {
		log.Info().Int("count", count).Msg("Deleted expired sessions")
	}

	return count, nil
}
