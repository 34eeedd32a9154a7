package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfeidau/kitakits/internal/models"
)

// AuditStore implements store.AuditStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type AuditStore struct {
	mu sync.RWMutex

	entries []models.CommandLog
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append adds a record to the log.
func (s *AuditStore) Append(ctx context.Context, entry *models.CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, *entry)
	return nil
}

// Entries returns a copy of all records in append order.
func (s *AuditStore) Entries() []models.CommandLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.CommandLog, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// CommandUsage aggregates records by command, most used first.
func (s *AuditStore) CommandUsage(ctx context.Context) ([]*models.CommandUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commandUsage(), nil
}

// caller must hold mu
func (s *AuditStore) commandUsage() []*models.CommandUsage {
	byCommand := make(map[string]*models.CommandUsage)
	for _, entry := range s.entries {
		usage, ok := byCommand[entry.Command]
		if !ok {
			usage = &models.CommandUsage{Command: entry.Command}
			byCommand[entry.Command] = usage
		}
		usage.UsageCount++
		if entry.Success {
			usage.SuccessCount++
		} else {
			usage.ErrorCount++
		}
		if entry.Timestamp.After(usage.LastUsed) {
			usage.LastUsed = entry.Timestamp
		}
	}

	result := make([]*models.CommandUsage, 0, len(byCommand))
	for _, usage := range byCommand {
		result = append(result, usage)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UsageCount == result[j].UsageCount {
			return result[i].Command < result[j].Command
		}
		return result[i].UsageCount > result[j].UsageCount
	})

	return result
}

// DailyActivity aggregates records since the given time by UTC day.
func (s *AuditStore) DailyActivity(ctx context.Context, since time.Time) ([]*models.DailyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dailyActivity(since), nil
}

// caller must hold mu
func (s *AuditStore) dailyActivity(since time.Time) []*models.DailyActivity {
	type day struct {
		activity *models.DailyActivity
		users    map[string]struct{}
	}

	byDay := make(map[time.Time]*day)
	for _, entry := range s.entries {
		if entry.Timestamp.Before(since) {
			continue
		}
		date := entry.Timestamp.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[date]
		if !ok {
			d = &day{
				activity: &models.DailyActivity{Date: date},
				users:    make(map[string]struct{}),
			}
			byDay[date] = d
		}
		d.activity.CommandsExecuted++
		d.users[entry.ExternalID] = struct{}{}
	}

	result := make([]*models.DailyActivity, 0, len(byDay))
	for _, d := range byDay {
		d.activity.UniqueUsers = int64(len(d.users))
		result = append(result, d.activity)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})

	return result
}

// UniqueUsers counts distinct external identities in the log.
func (s *AuditStore) UniqueUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.uniqueUsers(), nil
}

// caller must hold mu
func (s *AuditStore) uniqueUsers() int64 {
	users := make(map[string]struct{})
	for _, entry := range s.entries {
		users[entry.ExternalID] = struct{}{}
	}
	return int64(len(users))
}
