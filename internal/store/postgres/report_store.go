package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReportStore implements store.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a new PostgreSQL-backed report store.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{
		pool: pool,
	}
}

// Snapshot runs every report query in one read-only REPEATABLE READ
// transaction, so all aggregates see the same committed state.
func (s *ReportStore) Snapshot(ctx context.Context, since time.Time) (*models.ReportSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", mapPostgresError(err))
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn().Err(err).Msg("Failed to rollback snapshot transaction")
		}
	}()

	snap := &models.ReportSnapshot{}

	if snap.Items, err = listItems(ctx, tx); err != nil {
		return nil, err
	}
	if snap.CommandUsage, err = commandUsage(ctx, tx); err != nil {
		return nil, err
	}
	if snap.DailyActivity, err = dailyActivity(ctx, tx, since); err != nil {
		return nil, err
	}
	if snap.UniqueUsers, err = uniqueUsers(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", mapPostgresError(err))
	}

	return snap, nil
}
