package memory

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// ReportStore implements store.ReportStore over an in-memory item store and
// audit store. Both read locks are held for the whole snapshot, always in
// item then audit order.
type ReportStore struct {
	items *ItemStore
	audit *AuditStore
}

// NewReportStore creates a report store reading from items and audit.
func NewReportStore(items *ItemStore, audit *AuditStore) *ReportStore {
	return &ReportStore{items: items, audit: audit}
}

// Snapshot reads every report aggregate under one set of locks.
func (s *ReportStore) Snapshot(ctx context.Context, since time.Time) (*models.ReportSnapshot, error) {
	s.items.mu.RLock()
	defer s.items.mu.RUnlock()
	s.audit.mu.RLock()
	defer s.audit.mu.RUnlock()

	return &models.ReportSnapshot{
		Items:         s.items.list(),
		CommandUsage:  s.audit.commandUsage(),
		DailyActivity: s.audit.dailyActivity(since),
		UniqueUsers:   s.audit.uniqueUsers(),
	}, nil
}
