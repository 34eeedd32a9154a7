package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

func openTestStores(t *testing.T) store.Stores {
	t.Helper()

	pool, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, pool.Ping(context.Background()))

	return NewStores(pool)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, stores.Users.Create(ctx, &models.User{Username: "admin", PasswordHash: "hash", CreatedAt: now}))

	err := stores.Users.Create(ctx, &models.User{Username: "admin", PasswordHash: "other", CreatedAt: now})
	require.ErrorIs(t, err, store.ErrUserAlreadyExists)

	user, err := stores.Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "hash", user.PasswordHash)
	require.Nil(t, user.ExternalID)
	require.Nil(t, user.LastLoginAt)
	require.True(t, now.Equal(user.CreatedAt))

	require.NoError(t, stores.Users.BindExternalID(ctx, "admin", "psid-1", now.Add(time.Minute)))

	user, err = stores.Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "psid-1", *user.ExternalID)
	require.True(t, now.Add(time.Minute).Equal(*user.LastLoginAt))

	_, err = stores.Users.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrUserNotFound)

	err = stores.Users.BindExternalID(ctx, "ghost", "psid-1", now)
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	issued := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := stores.Sessions.LatestActive(ctx, "psid-1", issued)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	for _, token := range []string{"first", "second"} {
		require.NoError(t, stores.Sessions.Create(ctx, &models.Session{
			SessionID:  uuid.Must(uuid.NewV7()),
			ExternalID: "psid-1",
			Token:      token,
			CreatedAt:  issued,
			ExpiresAt:  issued.Add(24 * time.Hour),
		}))
	}

	session, err := stores.Sessions.LatestActive(ctx, "psid-1", issued.Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)
	require.Equal(t, "second", session.Token)

	_, err = stores.Sessions.LatestActive(ctx, "psid-1", issued.Add(24*time.Hour))
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = stores.Sessions.LatestActive(ctx, "psid-2", issued)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	count, err := stores.Sessions.DeleteExpired(ctx, issued.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = stores.Sessions.DeleteExpired(ctx, issued.Add(25*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestItemStore(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := stores.Items.Get(ctx, models.DefaultItemID)
	require.ErrorIs(t, err, store.ErrItemNotFound)

	item, err := stores.Items.Modify(ctx, models.DefaultItemID, models.OperationIncrement, 1, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), item.Count)
	require.Equal(t, models.DefaultItemID, item.Name)

	item, err = stores.Items.Modify(ctx, models.DefaultItemID, models.OperationDecrement, 5, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(0), item.Count)
	require.True(t, now.Equal(item.CreatedAt))
	require.True(t, now.Add(time.Second).Equal(item.UpdatedAt))

	item, err = stores.Items.Modify(ctx, "fresh", models.OperationDecrement, 1, now)
	require.NoError(t, err)
	require.Equal(t, int64(0), item.Count)

	_, err = stores.Items.Modify(ctx, "fresh", models.OperationIncrement, 0, now)
	require.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = stores.Items.Modify(ctx, "fresh", models.Operation("reset"), 1, now)
	require.ErrorIs(t, err, store.ErrInvalidOperation)

	items, err := stores.Items.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, models.DefaultItemID, items[0].ItemID)
}

func TestItemStore_ConcurrentModify(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	const workers = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stores.Items.Modify(ctx, models.DefaultItemID, models.OperationIncrement, 1, now)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	item, err := stores.Items.Get(ctx, models.DefaultItemID)
	require.NoError(t, err)
	require.Equal(t, int64(workers), item.Count)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	day1 := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 15, 0, 0, time.UTC)

	params := "alice"
	errMsg := "invalid credentials"
	entries := []*models.CommandLog{
		{ExternalID: "psid-1", Command: "login", Parameters: &params, Success: false, ErrorMessage: &errMsg, Timestamp: day1},
		{ExternalID: "psid-1", Command: "add", Success: true, Timestamp: day1},
		{ExternalID: "psid-1", Command: "add", Success: true, Timestamp: day2},
		{ExternalID: "psid-2", Command: "count", Success: true, Timestamp: day2},
	}
	for _, entry := range entries {
		entry.LogID = uuid.Must(uuid.NewV7())
		require.NoError(t, stores.Audit.Append(ctx, entry))
	}

	usage, err := stores.Audit.CommandUsage(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 3)
	require.Equal(t, "add", usage[0].Command)
	require.Equal(t, int64(2), usage[0].UsageCount)
	require.Equal(t, int64(2), usage[0].SuccessCount)
	require.True(t, day2.Equal(usage[0].LastUsed))
	require.Equal(t, "count", usage[1].Command)
	require.Equal(t, "login", usage[2].Command)
	require.Equal(t, int64(1), usage[2].ErrorCount)

	daily, err := stores.Audit.DailyActivity(ctx, day1.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), daily[0].Date)
	require.Equal(t, int64(2), daily[0].CommandsExecuted)
	require.Equal(t, int64(2), daily[0].UniqueUsers)
	require.Equal(t, int64(2), daily[1].CommandsExecuted)
	require.Equal(t, int64(1), daily[1].UniqueUsers)

	daily, err = stores.Audit.DailyActivity(ctx, day2)
	require.NoError(t, err)
	require.Len(t, daily, 1)

	users, err := stores.Audit.UniqueUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), users)
}

func TestReportStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := stores.Items.Modify(ctx, models.DefaultItemID, models.OperationIncrement, 4, now)
	require.NoError(t, err)

	for i, entry := range []*models.CommandLog{
		{ExternalID: "psid-1", Command: "add", Success: true, Timestamp: now},
		{ExternalID: "psid-2", Command: "count", Success: true, Timestamp: now.Add(-time.Hour)},
		{ExternalID: "psid-3", Command: "unknown", Success: false, Timestamp: now.Add(-60 * 24 * time.Hour)},
	} {
		entry.LogID = uuid.Must(uuid.NewV7())
		require.NoError(t, stores.Audit.Append(ctx, entry), "entry %d", i)
	}

	snap, err := stores.Reports.Snapshot(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	require.Equal(t, int64(4), snap.Items[0].Count)
	require.Equal(t, int64(3), snap.TotalCommands())
	require.Len(t, snap.DailyActivity, 1)
	require.Equal(t, int64(2), snap.DailyActivity[0].CommandsExecuted)
	require.Equal(t, int64(3), snap.UniqueUsers)

	// the connection is returned with no transaction left open
	require.NoError(t, stores.Audit.Append(ctx, &models.CommandLog{
		LogID:      uuid.Must(uuid.NewV7()),
		ExternalID: "psid-4",
		Command:    "help",
		Success:    true,
		Timestamp:  now,
	}))
}

func TestReportStore_SnapshotConsistentUnderWrites(t *testing.T) {
	ctx := context.Background()
	stores := openTestStores(t)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			err := stores.Audit.Append(ctx, &models.CommandLog{
				LogID:      uuid.Must(uuid.NewV7()),
				ExternalID: "psid-1",
				Command:    "add",
				Success:    true,
				Timestamp:  now,
			})
			if err != nil {
				errs <- err
				return
			}
		}
	}()

	for range 50 {
		snap, err := stores.Reports.Snapshot(ctx, now.Add(-time.Hour))
		require.NoError(t, err)

		var daily int64
		for _, d := range snap.DailyActivity {
			daily += d.CommandsExecuted
		}
		require.Equal(t, snap.TotalCommands(), daily)
	}

	close(stop)
	wg.Wait()

	select {
	case err := <-errs:
		require.NoError(t, err)
	default:
	}
}
