package users

import (
	"errors"
	"time"
)

// User represents a managed account. PasswordHash never leaves the
// package; handlers expose the rest.
type User struct {
	ID           int64
	Email        string
	Name         string
	RoleName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrEmailTaken reports a duplicate email on create or update.
	ErrEmailTaken = errors.New("users: email already in use")
	// ErrUnknownRole reports an attempt to assign a role that does not exist.
	ErrUnknownRole = errors.New("users: unknown role")
	// ErrSelfDelete reports an attempt by a user to delete their own account.
	ErrSelfDelete = errors.New("users: cannot delete own account")
)
