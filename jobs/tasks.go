package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPermissionSync reconciles the permission catalog with the
	// registered routes and repairs the administrator's grants.
	TaskPermissionSync = "rbac:sync"
	// TaskReportBuild renders a report export off the request path and
	// records it in the run ledger.
	TaskReportBuild = "report:build"
)

// PermissionSyncPayload records what triggered a sync run.
type PermissionSyncPayload struct {
	Reason string `json:"reason"`
}

// NewPermissionSyncTask constructs an Asynq task for catalog reconciliation.
func NewPermissionSyncTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "manual"
	}
	body, err := json.Marshal(PermissionSyncPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionSync, body, asynq.Queue(QueueDefault)), nil
}

// ReportBuildPayload identifies the report to build and who asked for it.
type ReportBuildPayload struct {
	Kind        string `json:"kind"`
	RequestedBy int64  `json:"requested_by"`
}

// NewReportBuildTask constructs an Asynq task for a background report build.
func NewReportBuildTask(kind string, requestedBy int64) (*asynq.Task, error) {
	body, err := json.Marshal(ReportBuildPayload{Kind: kind, RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportBuild, body, asynq.Queue(QueueDefault)), nil
}
