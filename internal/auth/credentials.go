package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both unknown usernames and
// password mismatches.
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash is compared against when the username does not exist so both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("kitakits-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to generate dummy hash: %v", err))
	}
	return hash
})

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Credentials validates login attempts against stored bcrypt hashes.
type Credentials struct {
	users store.UserStore
	clock clock.Clock
}

// NewCredentials creates a credential validator over users.
func NewCredentials(users store.UserStore, clk clock.Clock) *Credentials {
	return &Credentials{
		users: users,
		clock: clk,
	}
}

// Validate reports whether password matches the stored hash for username.
func (c *Credentials) Validate(ctx context.Context, username, password string) bool {
	return c.check(ctx, username, password) == nil
}

func (c *Credentials) check(ctx context.Context, username, password string) error {
	user, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Error().Err(err).Msg("Failed to load user")
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// RebindIdentity attaches externalID to username, replacing any previous
// binding, and stamps the login time.
func (c *Credentials) RebindIdentity(ctx context.Context, username, externalID string) error {
	if err := c.users.BindExternalID(ctx, username, externalID, c.clock.Now()); err != nil {
		return fmt.Errorf("failed to rebind identity: %w", err)
	}
	return nil
}
