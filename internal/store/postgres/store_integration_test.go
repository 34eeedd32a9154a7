//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (store.Stores, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))
	// second run must be a no-op
	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return NewStores(pool), cleanup
}

func TestIntegration_Stores(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("users", func(t *testing.T) {
		user := &models.User{Username: "alice", PasswordHash: "hash", CreatedAt: now}
		require.NoError(t, stores.Users.Create(ctx, user))

		err := stores.Users.Create(ctx, user)
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)

		require.NoError(t, stores.Users.BindExternalID(ctx, "alice", "psid-1", now))

		got, err := stores.Users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got.ExternalID)
		require.Equal(t, "psid-1", *got.ExternalID)
		require.NotNil(t, got.LastLoginAt)

		_, err = stores.Users.GetByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrUserNotFound)

		err = stores.Users.BindExternalID(ctx, "nobody", "psid-1", now)
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("sessions", func(t *testing.T) {
		for _, token := range []string{"first", "second"} {
			require.NoError(t, stores.Sessions.Create(ctx, &models.Session{
				SessionID:  uuid.Must(uuid.NewV7()),
				ExternalID: "psid-2",
				Token:      token,
				CreatedAt:  now,
				ExpiresAt:  now.Add(24 * time.Hour),
			}))
		}

		got, err := stores.Sessions.LatestActive(ctx, "psid-2", now)
		require.NoError(t, err)
		require.Equal(t, "second", got.Token)

		_, err = stores.Sessions.LatestActive(ctx, "psid-2", now.Add(24*time.Hour))
		require.ErrorIs(t, err, store.ErrSessionNotFound)

		count, err := stores.Sessions.DeleteExpired(ctx, now.Add(24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("items", func(t *testing.T) {
		_, err := stores.Items.Get(ctx, models.DefaultItemID)
		require.ErrorIs(t, err, store.ErrItemNotFound)

		item, err := stores.Items.Modify(ctx, models.DefaultItemID, models.OperationDecrement, 1, now)
		require.NoError(t, err)
		require.Equal(t, int64(0), item.Count)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for range 20 {
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

		item, err = stores.Items.Get(ctx, models.DefaultItemID)
		require.NoError(t, err)
		require.Equal(t, int64(20), item.Count)

		items, err := stores.Items.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
	})

	t.Run("audit", func(t *testing.T) {
		yesterday := now.Add(-24 * time.Hour)
		entries := []struct {
			externalID string
			command    string
			success    bool
			at         time.Time
		}{
			{"psid-1", "add", true, yesterday},
			{"psid-1", "add", true, now},
			{"psid-2", "count", true, now},
			{"psid-2", "unknown", false, now},
		}
		for _, e := range entries {
			require.NoError(t, stores.Audit.Append(ctx, &models.CommandLog{
				LogID:      uuid.Must(uuid.NewV7()),
				ExternalID: e.externalID,
				Command:    e.command,
				Success:    e.success,
				Timestamp:  e.at,
			}))
		}

		usage, err := stores.Audit.CommandUsage(ctx)
		require.NoError(t, err)
		require.Len(t, usage, 3)
		require.Equal(t, "add", usage[0].Command)
		require.Equal(t, int64(2), usage[0].UsageCount)

		users, err := stores.Audit.UniqueUsers(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2), users)

		daily, err := stores.Audit.DailyActivity(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		require.NotEmpty(t, daily)
		require.True(t, daily[0].Date.After(daily[len(daily)-1].Date) || len(daily) == 1)
	})

	t.Run("report snapshot", func(t *testing.T) {
		snap, err := stores.Reports.Snapshot(ctx, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, snap.Items, 1)
		require.Equal(t, int64(4), snap.TotalCommands())
		require.Equal(t, int64(2), snap.UniqueUsers)

		var daily int64
		for _, d := range snap.DailyActivity {
			daily += d.CommandsExecuted
		}
		require.Equal(t, snap.TotalCommands(), daily)

		// read-only transaction is closed; writes still succeed afterwards
		require.NoError(t, stores.Audit.Append(ctx, &models.CommandLog{
			LogID:      uuid.Must(uuid.NewV7()),
			ExternalID: "psid-3",
			Command:    "help",
			Success:    true,
			Timestamp:  now,
		}))
	})
}
