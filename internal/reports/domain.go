// Package reports builds the program CSV exports, either streamed over
// HTTP or recorded as background runs.
package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Report kinds.
const (
	KindYouthSummary      = "youth-summary"
	KindMentorRoster      = "mentor-roster"
	KindBusinessDirectory = "business-directory"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ErrUnknownKind reports a report kind outside the fixed set.
var ErrUnknownKind = errors.New("reports: unknown report kind")

// ValidKind reports whether kind names a report.
func ValidKind(kind string) bool {
	return kind == KindYouthSummary || kind == KindMentorRoster || kind == KindBusinessDirectory
}

// Run records one background report build.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	RowCount    int        `json:"row_count"`
	RequestedBy int64      `json:"requested_by"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// CohortCount is the number of active youth in one cohort.
type CohortCount struct {
	Cohort string
	Count  int
}

// StatusCount is the number of makerspace projects in one status.
type StatusCount struct {
	Status string
	Count  int
}

// Summary aggregates the program headline numbers.
type Summary struct {
	Cohorts       []CohortCount
	ActiveMentors int
	Projects      []StatusCount
}

// RosterRow is one line of the mentor roster export.
type RosterRow struct {
	Name          string
	Email         string
	Expertise     string
	BusinessCount int
}

// DirectoryRow is one line of the partner business directory export.
type DirectoryRow struct {
	Name         string
	Industry     string
	City         string
	ContactEmail string
}
