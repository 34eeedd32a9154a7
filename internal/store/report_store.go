package store

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// ReportStore reads report aggregates across items and the audit log.
type ReportStore interface {
	// Snapshot returns items, command usage, daily activity since the given
	// time and the unique user count, all observed at the same instant.
	// Writes that land while the snapshot is taken are either entirely
	// included or entirely excluded.
	Snapshot(ctx context.Context, since time.Time) (*models.ReportSnapshot, error)
}
