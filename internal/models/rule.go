// File: internal/models/rule.go
package models

import (
	"time"
)

// RuleTrigger describes the alert condition that fires an automation rule.
type RuleTrigger struct {
	AlertType   AlertType     `json:"alert_type" validate:"required"`
	MinSeverity AlertSeverity `json:"min_severity"`
}

// Matches reports whether an alert satisfies the trigger.
func (t RuleTrigger) Matches(alert *Alert) bool {
	if t.AlertType != alert.Type {
		return false
	}
	if t.MinSeverity == "" {
		return true
	}
	return alert.Severity.AtLeast(t.MinSeverity)
}

// RuleAction describes the task an automation rule schedules when fired.
type RuleAction struct {
	TaskType  TaskType               `json:"task_type" validate:"required"`
	Schedule  ScheduleType           `json:"schedule_type" validate:"required"`
	Frequency *Frequency             `json:"frequency,omitempty"`
	Priority  int                    `json:"priority"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

// AutomationRule translates detected alert conditions into newly scheduled
// tasks. Rules are evaluated after every alert creation; a rule failure is
// logged and never aborts the alerting pipeline.
type AutomationRule struct {
	ID         string      `json:"id" db:"id"`
	BusinessID string      `json:"business_id" db:"business_id" validate:"required"`
	Name       string      `json:"name" db:"name" validate:"required"`
	Trigger    RuleTrigger `json:"trigger" db:"trigger"`
	Action     RuleAction  `json:"action" db:"action"`
	Active     bool        `json:"active" db:"active"`
	LastFired  *time.Time  `json:"last_fired,omitempty" db:"last_fired"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// RuleFilter selects automation rules for listing.
type RuleFilter struct {
	BusinessID *string `json:"business_id,omitempty"`
	Active     *bool   `json:"active,omitempty"`
	Limit      int     `json:"limit,omitempty"`
	Offset     int     `json:"offset,omitempty"`
}
