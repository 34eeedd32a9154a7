// Package seed provisions local accounts at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/kitakits/internal/auth"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/store"
	"gopkg.in/yaml.v3"
)

// Account is a user to provision. Exactly one of Password and
// PasswordHash must be set.
type Account struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// File is the on-disk seed format.
type File struct {
	Users []Account `yaml:"users"`
}

// Validate checks the account is usable.
func (a Account) Validate() error {
	if a.Username == "" {
		return errors.New("username is required")
	}
	if (a.Password == "") == (a.PasswordHash == "") {
		return fmt.Errorf("user %q: exactly one of password or password_hash is required", a.Username)
	}
	return nil
}

// LoadFile reads and validates a YAML seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, a := range f.Users {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("invalid seed file: %w", err)
		}
	}

	return &f, nil
}

// EnsureUsers creates each account that does not already exist and
// returns how many were created. Existing usernames are left untouched.
func EnsureUsers(ctx context.Context, users store.UserStore, clk clock.Clock, accounts ...Account) (int, error) {
	created := 0
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return created, err
		}

		hash := a.PasswordHash
		if hash == "" {
			var err error
			hash, err = auth.HashPassword(a.Password)
			if err != nil {
				return created, err
			}
		}

		err := users.Create(ctx, &models.User{
			Username:     a.Username,
			PasswordHash: hash,
			CreatedAt:    clk.Now(),
		})
		if errors.Is(err, store.ErrUserAlreadyExists) {
			log.Debug().Str("username", a.Username).Msg("User already exists, skipping")
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to create user %q: %w", a.Username, err)
		}

		log.Info().Str("username", a.Username).Msg("Created user")
		created++
	}
	return created, nil
}
