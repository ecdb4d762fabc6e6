// Package makerspace manages projects built in the program makerspace.
package makerspace

import (
	"errors"
	"time"
)

// Project statuses. Transitions move forward only: planned to active,
// active to complete.
const (
	StatusPlanned  = "planned"
	StatusActive   = "active"
	StatusComplete = "complete"
)

// Project represents one makerspace project.
type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	YouthID     *int64    `json:"youth_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	// ErrBadStatus reports an unknown status value.
	ErrBadStatus = errors.New("makerspace: unknown status")
	// ErrBadTransition reports a status change that skips or reverses the
	// project lifecycle.
	ErrBadTransition = errors.New("makerspace: invalid status transition")
)

// ValidStatus reports whether s names a project status.
func ValidStatus(s string) bool {
	return s == StatusPlanned || s == StatusActive || s == StatusComplete
}

// ValidTransition reports whether a project may move from one status to
// another. Staying put is always allowed.
func ValidTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPlanned:
		return to == StatusActive
	case StatusActive:
		return to == StatusComplete
	default:
		return false
	}
}
