// Package cli holds operational helpers reachable through the pathlight
// binary's subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/pathlight-hq/pathlight/internal/reports"
	"github.com/pathlight-hq/pathlight/jobs"
)

// JobsCLI wraps manual management helpers for the background queue.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name. The arg carries the report kind
// for report builds and is ignored otherwise.
func (c *JobsCLI) Trigger(ctx context.Context, name, arg string) (*asynq.TaskInfo, error) {
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskPermissionSync:
		task, err = jobs.NewPermissionSyncTask("cli")
	case jobs.TaskReportBuild:
		if !reports.ValidKind(arg) {
			return nil, fmt.Errorf("jobs cli: unknown report kind %q", arg)
		}
		task, err = jobs.NewReportBuildTask(arg, 0)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// RunOptions configures one CLI invocation.
type RunOptions struct {
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

const usage = `usage: pathlight jobs <command>

commands:
  trigger rbac:sync              enqueue a permission sync run
  trigger report:build <kind>    enqueue a report build
  stats                          print queue counters as JSON
  scheduled                      list scheduled tasks`

// Run dispatches a jobs subcommand and returns the process exit code.
func (c *JobsCLI) Run(ctx context.Context, opts RunOptions) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	if len(opts.Args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	switch opts.Args[0] {
	case "trigger":
		if len(opts.Args) < 2 {
			fmt.Fprintln(stderr, usage)
			return 1
		}
		arg := ""
		if len(opts.Args) > 2 {
			arg = opts.Args[2]
		}
		info, err := c.Trigger(ctx, opts.Args[1], arg)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", opts.Args[1], info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	case "scheduled":
		tasks, err := c.ListScheduled(ctx, 10)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		for _, task := range tasks {
			fmt.Fprintf(stdout, "%s id=%s next=%s\n", task.Type, task.ID, task.NextProcessAt.Format("2006-01-02 15:04:05"))
		}
		return 0
	default:
		fmt.Fprintln(stderr, usage)
		return 1
	}
}
