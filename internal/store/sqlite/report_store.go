package sqlite

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ReportStore implements store.ReportStore using SQLite.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new SQLite-backed report store.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Snapshot runs every report query on one connection inside a deferred
// read transaction. In WAL mode the transaction sees the database as of
// its first read, so concurrent appends are not observed part way through.
func (s *ReportStore) Snapshot(ctx context.Context, since time.Time) (snap *models.ReportSnapshot, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.inner.Put(conn)

	endTransaction := sqlitex.Transaction(conn)
	defer endTransaction(&err)

	snap = &models.ReportSnapshot{}

	if snap.Items, err = listItems(conn); err != nil {
		return nil, err
	}
	if snap.CommandUsage, err = commandUsage(conn); err != nil {
		return nil, err
	}
	if snap.DailyActivity, err = dailyActivity(conn, since); err != nil {
		return nil, err
	}
	if snap.UniqueUsers, err = uniqueUsers(conn); err != nil {
		return nil, err
	}

	return snap, nil
}
