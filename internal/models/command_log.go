package models

import (
	"time"

	"github.com/google/uuid"
)

// CommandLog is one append-only audit record. Every processed message
// produces exactly one.
type CommandLog struct {
	LogID        uuid.UUID // UUIDv7
	ExternalID   string
	Command      string
	Parameters   *string // opaque free text
	Success      bool
	ErrorMessage *string
	Timestamp    time.Time
}

// CommandUsage aggregates audit records per command name.
type CommandUsage struct {
	Command      string
	UsageCount   int64
	LastUsed     time.Time
	SuccessCount int64
	ErrorCount   int64
}

// DailyActivity aggregates audit records per UTC day.
type DailyActivity struct {
	Date             time.Time // midnight UTC
	CommandsExecuted int64
	UniqueUsers      int64
}

// ReportSnapshot is every aggregate a statistics report needs, read at a
// single point in time.
type ReportSnapshot struct {
	Items         []*Item
	CommandUsage  []*CommandUsage
	DailyActivity []*DailyActivity // records at or after the requested since
	UniqueUsers   int64
}

// TotalCommands sums usage across all commands.
func (s *ReportSnapshot) TotalCommands() int64 {
	var total int64
	for _, u := range s.CommandUsage {
		total += u.UsageCount
	}
	return total
}
