// Package businesses manages partner businesses that host youth
// placements.
package businesses

import "time"

// Business represents a partner business.
type Business struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Industry     string    `json:"industry"`
	ContactEmail string    `json:"contact_email"`
	City         string    `json:"city"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
