package shared

import "errors"

// Sentinels shared across the domain packages. Repository lookups translate
// pgx.ErrNoRows into ErrNotFound so handlers can map it to a 404 without
// knowing the storage layer.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a failed login attempt. Deliberately
	// covers both unknown-email and wrong-password so responses do not leak
	// which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
