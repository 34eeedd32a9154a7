package auth

import (
	"context"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/store/memory"
)

func TestLedger_SessionWindow(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(issued)
	ledger := NewLedger(memory.NewSessionStore(), clk, 0)

	require.Equal(t, DefaultSessionTTL, ledger.TTL())
	require.False(t, ledger.IsAuthenticated(ctx, "psid-1"))

	_, err := ledger.Issue(ctx, "psid-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		at       time.Time
		expected bool
	}{
		{name: "at issue time", at: issued, expected: true},
		{name: "mid window", at: issued.Add(12 * time.Hour), expected: true},
		{name: "just before expiry", at: issued.Add(DefaultSessionTTL - time.Nanosecond), expected: true},
		{name: "at expiry", at: issued.Add(DefaultSessionTTL), expected: false},
		{name: "after expiry", at: issued.Add(48 * time.Hour), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.Set(tt.at)
			require.Equal(t, tt.expected, ledger.IsAuthenticated(ctx, "psid-1"))
		})
	}
}

func TestLedger_IdentitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewLedger(memory.NewSessionStore(), clk, time.Hour)

	_, err := ledger.Issue(ctx, "psid-1")
	require.NoError(t, err)

	require.True(t, ledger.IsAuthenticated(ctx, "psid-1"))
	require.False(t, ledger.IsAuthenticated(ctx, "psid-2"))
}

func TestLedger_ReissueExtendsWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewLedger(memory.NewSessionStore(), clk, time.Hour)

	first, err := ledger.Issue(ctx, "psid-1")
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)
	second, err := ledger.Issue(ctx, "psid-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	clk.Advance(45 * time.Minute)
	require.True(t, ledger.IsAuthenticated(ctx, "psid-1"))

	clk.Advance(15 * time.Minute)
	require.False(t, ledger.IsAuthenticated(ctx, "psid-1"))

	pruned, err := ledger.PruneExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pruned)
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		token, err := generateToken()
		require.NoError(t, err)

		raw, err := base58.Decode(token)
		require.NoError(t, err)
		require.Len(t, raw, tokenBytes)

		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}
