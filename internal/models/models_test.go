package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		op       Operation
		amount   int64
		expected int64
	}{
		{name: "increment", current: 3, op: OperationIncrement, amount: 1, expected: 4},
		{name: "decrement", current: 3, op: OperationDecrement, amount: 1, expected: 2},
		{name: "decrement at zero stays zero", current: 0, op: OperationDecrement, amount: 1, expected: 0},
		{name: "decrement past zero floors", current: 2, op: OperationDecrement, amount: 5, expected: 0},
		{name: "increment by many", current: 0, op: OperationIncrement, amount: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Apply(tt.current, tt.op, tt.amount))
		})
	}
}

func TestOperation_PastTense(t *testing.T) {
	require.Equal(t, "added", OperationIncrement.PastTense())
	require.Equal(t, "subtracted", OperationDecrement.PastTense())
	require.True(t, OperationIncrement.Valid())
	require.False(t, Operation("multiply").Valid())
}

func TestSession_IsValidAt(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{CreatedAt: issued, ExpiresAt: issued.Add(24 * time.Hour)}

	require.True(t, s.IsValidAt(issued))
	require.True(t, s.IsValidAt(issued.Add(24*time.Hour-time.Nanosecond)))
	require.False(t, s.IsValidAt(issued.Add(24*time.Hour)))
	require.False(t, s.IsValidAt(issued.Add(48*time.Hour)))
}
