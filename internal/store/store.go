// Package store defines the persistence contracts for users, sessions,
// counters and the command audit log. Implementations live in the memory,
// sqlite and postgres subpackages.
package store

import "errors"

// Sentinel errors for common error conditions
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrSessionNotFound   = errors.New("session not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidOperation  = errors.New("invalid operation")
)

// Stores groups the stores a backend provides.
type Stores struct {
	Users    UserStore
	Sessions SessionStore
	Items    ItemStore
	Audit    AuditStore
	Reports  ReportStore
}
