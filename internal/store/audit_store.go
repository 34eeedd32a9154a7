package store

import (
	"context"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// AuditStore is the append-only command log. Records are never updated or
// deleted; the read side only serves report aggregates.
type AuditStore interface {
	// Append adds a record.
	Append(ctx context.Context, entry *models.CommandLog) error

	// CommandUsage aggregates all records by command, most used first.
	CommandUsage(ctx context.Context) ([]*models.CommandUsage, error)

	// DailyActivity aggregates records at or after since by UTC day,
	// newest day first.
	DailyActivity(ctx context.Context, since time.Time) ([]*models.DailyActivity, error)

	// UniqueUsers counts distinct external identities across all records.
	UniqueUsers(ctx context.Context) (int64, error)
}
