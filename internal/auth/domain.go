package auth

import "time"

// User represents an authenticated account. RoleName links the account to
// the authorization model by name, not by foreign key, so an unknown role
// denies instead of breaking the login.
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
