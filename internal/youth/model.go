// Package youth manages youth profiles, the participants the program
// serves.
package youth

import "time"

// Profile represents one enrolled youth.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"`
	School    string    `json:"school"`
	Cohort    string    `json:"cohort"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
