package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// UserStore implements store.UserStore using SQLite.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new SQLite-backed user store.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Create creates a new user.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.inner.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO users (username, password_hash, external_id, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				user.Username,
				user.PasswordHash,
				nullableString(user.ExternalID),
				toNanos(user.CreatedAt),
				nullableTime(user.LastLoginAt),
			},
		})
	if err != nil {
		if isConstraintViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	log.Debug().Str("username", user.Username).Msg("Created user")

	return nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	var user *models.User
	err = sqlitex.Execute(conn, `
		SELECT username, password_hash, external_id, created_at, last_login_at
		FROM users WHERE username = ?`,
		&sqlitex.ExecOptions{
			Args: []any{username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user = &models.User{
					Username:     stmt.ColumnText(0),
					PasswordHash: stmt.ColumnText(1),
					ExternalID:   columnString(stmt, 2),
					CreatedAt:    fromNanos(stmt.ColumnInt64(3)),
					LastLoginAt:  columnTime(stmt, 4),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user == nil {
		return nil, store.ErrUserNotFound
	}

	return user, nil
}

// BindExternalID attaches externalID to the user and records the login time.
func (s *UserStore) BindExternalID(ctx context.Context, username, externalID string, at time.Time) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.inner.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE users SET external_id = ?, last_login_at = ? WHERE username = ?`,
		&sqlitex.ExecOptions{
			Args: []any{externalID, toNanos(at), username},
		})
	if err != nil {
		return fmt.Errorf("failed to bind external id: %w", err)
	}

	if conn.Changes() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}
