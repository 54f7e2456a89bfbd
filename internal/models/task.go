// File: internal/models/task.go
package models

import (
	"time"
)

// TaskType identifies the kind of analysis work a task performs.
// The set is closed: handlers are registered per type at startup and
// unknown types are rejected with a configuration error.
type TaskType string

const (
	TaskTypeRankCheck      TaskType = "rank_check"
	TaskTypeTrafficReport  TaskType = "traffic_report"
	TaskTypeTechnicalAudit TaskType = "technical_audit"
	TaskTypeCompetitorScan TaskType = "competitor_scan"
	TaskTypeContentRefresh TaskType = "content_refresh"
)

// AllTaskTypes returns every known task type.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskTypeRankCheck,
		TaskTypeTrafficReport,
		TaskTypeTechnicalAudit,
		TaskTypeCompetitorScan,
		TaskTypeContentRefresh,
	}
}

// IsValidTaskType reports whether t is a member of the closed task type set.
func IsValidTaskType(t TaskType) bool {
	for _, known := range AllTaskTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ScheduleType determines how next_run is computed.
type ScheduleType string

const (
	ScheduleImmediate   ScheduleType = "immediate"
	ScheduleRecurring   ScheduleType = "recurring"
	ScheduleConditional ScheduleType = "conditional"
)

// Frequency is the calendar interval for recurring tasks.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// NextAfter returns the next run time following from, using calendar
// arithmetic for monthly and quarterly intervals.
func (f Frequency) NextAfter(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.Add(24 * time.Hour)
	case FrequencyWeekly:
		return from.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	default:
		return from.Add(24 * time.Hour)
	}
}

// IsValidFrequency reports whether f is a supported recurrence interval.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	}
	return false
}

// TaskStatus is the task state machine position.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
// A failed task that still has retries left is re-armed to pending by the
// executor before it ever persists as failed, so failed here is terminal.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task represents a schedulable unit of analysis work tied to a business.
// Tasks are created by the scheduler, mutated only by the executor and
// explicit cancellation, and never deleted.
type Task struct {
	ID          string                 `json:"id" db:"id"`
	BusinessID  string                 `json:"business_id" db:"business_id"`
	CampaignID  *string                `json:"campaign_id,omitempty" db:"campaign_id"`
	Type        TaskType               `json:"task_type" db:"task_type"`
	Schedule    ScheduleType           `json:"schedule_type" db:"schedule_type"`
	Frequency   *Frequency             `json:"frequency,omitempty" db:"frequency"`
	NextRun     *time.Time             `json:"next_run,omitempty" db:"next_run"`
	LastRun     *time.Time             `json:"last_run,omitempty" db:"last_run"`
	Status      TaskStatus             `json:"status" db:"status"`
	Priority    int                    `json:"priority" db:"priority"` // 1 (lowest) .. 5 (highest)
	RetryCount  int                    `json:"retry_count" db:"retry_count"`
	MaxRetries  int                    `json:"max_retries" db:"max_retries"`
	AutoRetry   bool                   `json:"auto_retry" db:"auto_retry"`
	Config      map[string]interface{} `json:"config,omitempty" db:"config"`
	Trigger     *TriggerCondition      `json:"trigger,omitempty" db:"trigger"`
	Result      map[string]interface{} `json:"result,omitempty" db:"result"`
	Error       *string                `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
}

// TriggerCondition arms a conditional task: the task stays dormant until an
// alert of the given type and minimum severity is observed for the business.
type TriggerCondition struct {
	AlertType   AlertType     `json:"alert_type"`
	MinSeverity AlertSeverity `json:"min_severity"`
}

// TaskFilter selects tasks for listing and execution queries.
type TaskFilter struct {
	BusinessID *string      `json:"business_id,omitempty"`
	CampaignID *string      `json:"campaign_id,omitempty"`
	Type       *TaskType    `json:"task_type,omitempty"`
	Statuses   []TaskStatus `json:"statuses,omitempty"`
	DueBefore  *time.Time   `json:"due_before,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}

// TaskStatusSummary aggregates task counts per status for a listing response.
type TaskStatusSummary struct {
	Total  int64                `json:"total"`
	Counts map[TaskStatus]int64 `json:"counts"`
}

// TaskExecutionLog is the audit record appended for every side-effecting
// action on a task: scheduling, cancellation, and each execution outcome.
type TaskExecutionLog struct {
	ID         int64         `json:"id" db:"id"`
	TaskID     string        `json:"task_id" db:"task_id"`
	BusinessID string        `json:"business_id" db:"business_id"`
	Outcome    string        `json:"outcome" db:"outcome"` // scheduled, cancelled, completed, failed, retry_scheduled
	Message    string        `json:"message" db:"message"`
	Attempt    int           `json:"attempt" db:"attempt"`
	Duration   time.Duration `json:"duration" db:"duration"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// Audit outcome values for TaskExecutionLog.
const (
	OutcomeScheduled      = "scheduled"
	OutcomeCancelled      = "cancelled"
	OutcomeCompleted      = "completed"
	OutcomeFailed         = "failed"
	OutcomeRetryScheduled = "retry_scheduled"
)
