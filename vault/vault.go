// Package vault defines the records lockbox persists (users and notes) and
// the contracts every storage backend must honor.
//
// Backends live in sub-packages:
//
//   - sqlvault: sqlite or postgres through database/sql
//   - mongovault: MongoDB documents, closest to the original data model
//   - memvault: in-process documents kept in bigcache, for development and tests
//
// Stores never hash passwords. Whatever is handed to CreateUser or SaveUser
// as PasswordHash is stored as-is.
package vault

import (
	"context"
	"strings"
	"time"
)

type (
	// User is a registered account.
	User struct {
		ID           string
		Email        string
		PasswordHash string
		Sessions     Sessions
		CreatedAt    time.Time
	}

	// Note is an anonymous secret. It carries no reference to its author.
	Note struct {
		ID        string
		Content   string
		CreatedAt time.Time
	}

	// Credentials persists user records.
	Credentials interface {
		// CreateUser stores a new user, failing with DuplicateEmail if the
		// email is already taken. Uniqueness is enforced by the backend at
		// write time.
		CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
		FindUserByEmail(ctx context.Context, email string) (*User, error)
		FindUserByID(ctx context.Context, id string) (*User, error)
		// SaveUser persists every mutable field of u, including the full
		// ordered session list.
		SaveUser(ctx context.Context, u *User) error
	}

	// Notes persists submitted secrets.
	Notes interface {
		CreateNote(ctx context.Context, content string) (*Note, error)
	}

	// Store is what a backend provides to the rest of the application.
	Store interface {
		Credentials
		Notes
		ListNotes(ctx context.Context) ([]Note, error)
		Close() error
	}
)

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy of u, so callers can mutate sessions without
// touching a value shared with a backend.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Sessions = append(Sessions(nil), u.Sessions...)
	return &c
}
