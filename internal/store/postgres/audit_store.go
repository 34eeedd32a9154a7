package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/kitakits/internal/models"
)

// AuditStore implements store.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new PostgreSQL-backed audit store.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{
		pool: pool,
	}
}

// Append adds a record to the command log.
func (s *AuditStore) Append(ctx context.Context, entry *models.CommandLog) error {
	query := `
		INSERT INTO command_logs (
			log_id, external_id, command, parameters, success, error_message, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.LogID,
		entry.ExternalID,
		entry.Command,
		entry.Parameters,
		entry.Success,
		entry.ErrorMessage,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append command log: %w", mapPostgresError(err))
	}

	return nil
}

// CommandUsage aggregates records by command, most used first.
func (s *AuditStore) CommandUsage(ctx context.Context) ([]*models.CommandUsage, error) {
	return commandUsage(ctx, s.pool)
}

func commandUsage(ctx context.Context, q querier) ([]*models.CommandUsage, error) {
	query := `
		SELECT
			command,
			COUNT(*) AS usage_count,
			MAX(timestamp) AS last_used,
			COUNT(*) FILTER (WHERE success) AS success_count,
			COUNT(*) FILTER (WHERE NOT success) AS error_count
		FROM command_logs
		GROUP BY command
		ORDER BY usage_count DESC, command
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query command usage: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.CommandUsage
	for rows.Next() {
		var usage models.CommandUsage
		if err := rows.Scan(
			&usage.Command,
			&usage.UsageCount,
			&usage.LastUsed,
			&usage.SuccessCount,
			&usage.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan command usage: %w", err)
		}
		result = append(result, &usage)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating command usage: %w", err)
	}

	return result, nil
}

// DailyActivity aggregates records at or after since by UTC day, newest first.
func (s *AuditStore) DailyActivity(ctx context.Context, since time.Time) ([]*models.DailyActivity, error) {
	return dailyActivity(ctx, s.pool, since)
}

func dailyActivity(ctx context.Context, q querier, since time.Time) ([]*models.DailyActivity, error) {
	query := `
		SELECT
			(timestamp AT TIME ZONE 'UTC')::date AS day,
			COUNT(*) AS commands_executed,
			COUNT(DISTINCT external_id) AS unique_users
		FROM command_logs
		WHERE timestamp >= $1
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := q.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.DailyActivity
	for rows.Next() {
		var day models.DailyActivity
		if err := rows.Scan(&day.Date, &day.CommandsExecuted, &day.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", err)
		}
		day.Date = day.Date.UTC()
		result = append(result, &day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily activity: %w", err)
	}

	return result, nil
}

// UniqueUsers counts distinct external identities across all records.
func (s *AuditStore) UniqueUsers(ctx context.Context) (int64, error) {
	return uniqueUsers(ctx, s.pool)
}

func uniqueUsers(ctx context.Context, q querier) (int64, error) {
	var count int64
	if err := q.QueryRow(ctx, `SELECT COUNT(DISTINCT external_id) FROM command_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unique users: %w", mapPostgresError(err))
	}
	return count, nil
}
