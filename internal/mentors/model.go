// Package mentors manages mentors and the businesses they run. The
// mentor-businesses surface shares the mentors permission resource.
package mentors

import (
	"errors"
	"time"
)

// Mentor represents one program mentor. Businesses is populated on detail
// reads only.
type Mentor struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Expertise  string     `json:"expertise"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Businesses []Business `json:"businesses,omitempty"`
}

// Business is a venture owned by a mentor.
type Business struct {
	ID          int64     `json:"id"`
	MentorID    int64     `json:"mentor_id"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	FoundedYear int       `json:"founded_year"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	// ErrEmailTaken reports a duplicate mentor email.
	ErrEmailTaken = errors.New("mentors: email already in use")
)
