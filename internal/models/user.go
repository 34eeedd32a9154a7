package models

import "time"

// User is a local account that can bind itself to a messaging identity.
type User struct {
	Username     string
	PasswordHash string

	// ExternalID is the platform sender identity last bound to this account.
	// Nil until the first successful login.
	ExternalID *string

	CreatedAt   time.Time
	LastLoginAt *time.Time
}
