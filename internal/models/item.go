package models

import "time"

// DefaultItemID is the counter every add/subtract/count command targets.
const DefaultItemID = "default_item"

// Operation is a counter mutation.
type Operation string

const (
	OperationIncrement Operation = "add"
	OperationDecrement Operation = "subtract"
)

// Valid returns true for known operations.
func (o Operation) Valid() bool {
	return o == OperationIncrement || o == OperationDecrement
}

// PastTense returns the verb used in replies ("added", "subtracted").
func (o Operation) PastTense() string {
	switch o {
	case OperationIncrement:
		return "added"
	case OperationDecrement:
		return "subtracted"
	default:
		return string(o)
	}
}

// Item is a named non-negative counter.
type Item struct {
	ItemID    string
	Name      string
	Count     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Apply returns the count after applying op with amount to current.
// Decrements are floored at zero.
func Apply(current int64, op Operation, amount int64) int64 {
	if op == OperationIncrement {
		return current + amount
	}
	return max(0, current-amount)
}
