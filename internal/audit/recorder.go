// Package audit appends command outcomes to the audit log without letting
// log-write failures affect the command being recorded.
package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

// Entry describes one command outcome.
type Entry struct {
	ExternalID   string
	Command      string
	Parameters   string // empty means none
	Success      bool
	ErrorMessage string // empty means none
}

// Recorder writes audit entries. Write errors are logged and dropped.
type Recorder struct {
	store store.AuditStore
	clock clock.Clock
}

// NewRecorder creates a recorder over auditStore.
func NewRecorder(auditStore store.AuditStore, clk clock.Clock) *Recorder {
	return &Recorder{
		store: auditStore,
		clock: clk,
	}
}

// Record appends entry. It never fails the caller.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	logID, err := uuid.NewV7()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to generate audit log id")
		return
	}

	record := &models.CommandLog{
		LogID:        logID,
		ExternalID:   entry.ExternalID,
		Command:      entry.Command,
		Parameters:   optional(entry.Parameters),
		Success:      entry.Success,
		ErrorMessage: optional(entry.ErrorMessage),
		Timestamp:    r.clock.Now(),
	}

	if err := r.store.Append(ctx, record); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("external_id", entry.ExternalID).
			Str("command", entry.Command).
			Msg("failed to write audit record")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
