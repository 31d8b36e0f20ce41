package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskType selects the handler of a task.
type TaskType string

const (
	TaskBackup              TaskType = "backup"
	TaskHealthCheck         TaskType = "health_check"
	TaskMetricsCollection   TaskType = "metrics_collection"
	TaskCleanup             TaskType = "cleanup"
	TaskLogRotation         TaskType = "log_rotation"
	TaskSecurityScan        TaskType = "security_scan"
	TaskDatabaseMaintenance TaskType = "database_maintenance"
	TaskConfigReload        TaskType = "config_reload"
)

const customTaskPrefix = "custom:"

// CustomTaskType returns the task type of an application-defined task.
func CustomTaskType(name string) TaskType {
	return TaskType(customTaskPrefix + name)
}

// IsCustom reports whether t was built with CustomTaskType.
func (t TaskType) IsCustom() bool {
	return strings.HasPrefix(string(t), customTaskPrefix)
}

// TaskPriority orders tasks that are due at the same tick.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ScheduledTask is a recurring background job.
type ScheduledTask struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	CronExpression string            `json:"cron_expression"`
	Type           TaskType          `json:"type"`
	Priority       TaskPriority      `json:"priority"`
	Enabled        bool              `json:"enabled"`
	LastRun        time.Time         `json:"last_run"`
	NextRun        time.Time         `json:"next_run"`
	RetryCount     int               `json:"retry_count"`
	MaxRetries     int               `json:"max_retries"`
	RetryDelay     time.Duration     `json:"retry_delay"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TaskResult is the outcome of one dispatched invocation of a task.
type TaskResult struct {
	TaskID    string        `json:"task_id"`
	TaskName  string        `json:"task_name"`
	Type      TaskType      `json:"type"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// TaskStatus summarizes the registry.
type TaskStatus struct {
	Total     int             `json:"total"`
	Enabled   int             `json:"enabled"`
	Running   int             `json:"running"`
	Completed int             `json:"completed"`
	Tasks     []ScheduledTask `json:"tasks"`
}

// Handler executes tasks of one type.
type Handler interface {
	Execute(ctx context.Context, task ScheduledTask) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task ScheduledTask) error

func (f HandlerFunc) Execute(ctx context.Context, task ScheduledTask) error {
	return f(ctx, task)
}
