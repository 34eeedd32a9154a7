package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// AuditStore implements store.AuditStore using SQLite.
type AuditStore struct {
	pool *Pool
}

// NewAuditStore creates a new SQLite-backed audit store.
func NewAuditStore(pool *Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append adds a record to the command log.
func (s *AuditStore) Append(ctx context.Context, entry *models.CommandLog) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.inner.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO command_logs (log_id, external_id, command, parameters, success, error_message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				entry.LogID.String(),
				entry.ExternalID,
				entry.Command,
				nullableString(entry.Parameters),
				entry.Success,
				nullableString(entry.ErrorMessage),
				toNanos(entry.Timestamp),
			},
		})
	if err != nil {
		return fmt.Errorf("failed to append command log: %w", err)
	}

	return nil
}

// CommandUsage aggregates records by command, most used first.
func (s *AuditStore) CommandUsage(ctx context.Context) ([]*models.CommandUsage, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	return commandUsage(conn)
}

func commandUsage(conn *sqlite.Conn) ([]*models.CommandUsage, error) {
	var result []*models.CommandUsage
	err := sqlitex.Execute(conn, `
		SELECT
			command,
			COUNT(*) AS usage_count,
			MAX(timestamp),
			SUM(CASE WHEN success THEN 1 ELSE 0 END),
			SUM(CASE WHEN success THEN 0 ELSE 1 END)
		FROM command_logs
		GROUP BY command
		ORDER BY usage_count DESC, command`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				result = append(result, &models.CommandUsage{
					Command:      stmt.ColumnText(0),
					UsageCount:   stmt.ColumnInt64(1),
					LastUsed:     fromNanos(stmt.ColumnInt64(2)),
					SuccessCount: stmt.ColumnInt64(3),
					ErrorCount:   stmt.ColumnInt64(4),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query command usage: %w", err)
	}

	return result, nil
}

// DailyActivity aggregates records at or after since by UTC day, newest first.
func (s *AuditStore) DailyActivity(ctx context.Context, since time.Time) ([]*models.DailyActivity, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	return dailyActivity(conn, since)
}

func dailyActivity(conn *sqlite.Conn, since time.Time) ([]*models.DailyActivity, error) {
	var result []*models.DailyActivity
	err := sqlitex.Execute(conn, `
		SELECT
			date(timestamp / 1000000000, 'unixepoch') AS day,
			COUNT(*),
			COUNT(DISTINCT external_id)
		FROM command_logs
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`,
		&sqlitex.ExecOptions{
			Args: []any{toNanos(since)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				day, err := time.Parse(time.DateOnly, stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("invalid day: %w", err)
				}
				result = append(result, &models.DailyActivity{
					Date:             day,
					CommandsExecuted: stmt.ColumnInt64(1),
					UniqueUsers:      stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", err)
	}

	return result, nil
}

// UniqueUsers counts distinct external identities across all records.
func (s *AuditStore) UniqueUsers(ctx context.Context) (int64, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.inner.Put(conn)

	return uniqueUsers(conn)
}

func uniqueUsers(conn *sqlite.Conn) (int64, error) {
	var count int64
	err := sqlitex.Execute(conn, `SELECT COUNT(DISTINCT external_id) FROM command_logs`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("failed to count unique users: %w", err)
	}

	return count, nil
}
