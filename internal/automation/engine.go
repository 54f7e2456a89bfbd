// File: internal/automation/engine.go
package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/scheduler"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Engine defines the automation rule interface
type Engine interface {
	UpsertRule(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error)
	GetRule(ctx context.Context, ruleID, businessID string) (*models.AutomationRule, error)
	ListRules(ctx context.Context, filter models.RuleFilter) ([]*models.AutomationRule, error)
	Apply(ctx context.Context, alert *models.Alert) (*ApplyResult, error)
	GetStats() *EngineStats
}

// ApplyResult reports which rules fired for an alert.
type ApplyResult struct {
	Evaluated int      `json:"evaluated"`
	Fired     int      `json:"fired"`
	TaskIDs   []string `json:"task_ids,omitempty"`
}

// EngineStats tracks rule activity since startup.
type EngineStats struct {
	RulesEvaluated int64 `json:"rules_evaluated"`
	RulesFired     int64 `json:"rules_fired"`
	RuleErrors     int64 `json:"rule_errors"`
}

// RuleEngine implements the Engine interface. It reacts to alerts by
// scheduling follow-up tasks through the task scheduler.
type RuleEngine struct {
	storage   storage.Storage
	scheduler scheduler.Scheduler
	logger    *logrus.Logger
	metrics   *metrics.Manager
	validate  *validator.Validate

	mu    sync.RWMutex
	stats EngineStats
}

// NewRuleEngine creates a new automation rule engine
func NewRuleEngine(store storage.Storage, taskScheduler scheduler.Scheduler, metricsManager *metrics.Manager) *RuleEngine {
	return &RuleEngine{
		storage:   store,
		scheduler: taskScheduler,
		logger:    utils.GetLogger(),
		metrics:   metricsManager,
		validate:  validator.New(),
	}
}

// UpsertRule validates and persists an automation rule. An empty ID creates
// a new rule; a set ID updates the existing one.
func (e *RuleEngine) UpsertRule(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if err := e.validateRule(rule); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if rule.ID == "" {
		id, err := utils.GenerateID()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate rule ID", err.Error())
		}
		rule.ID = id
		rule.CreatedAt = now
	} else {
		existing, err := e.storage.GetRule(ctx, rule.ID, rule.BusinessID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, utils.NewAppError(utils.ErrCodeNotFound,
				fmt.Sprintf("Automation rule not found: %s", rule.ID), "")
		}
		rule.CreatedAt = existing.CreatedAt
		rule.LastFired = existing.LastFired
	}
	rule.UpdatedAt = now

	if err := e.storage.SaveRule(ctx, rule); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"rule_id":     rule.ID,
		"business_id": rule.BusinessID,
		"alert_type":  rule.Trigger.AlertType,
		"task_type":   rule.Action.TaskType,
	}).Info("Automation rule saved")
	return rule, nil
}

func (e *RuleEngine) validateRule(rule *models.AutomationRule) error {
	if rule == nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Automation rule is required", "")
	}

	var violations []string
	if err := e.validate.Struct(rule); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range fieldErrors {
				violations = append(violations, fmt.Sprintf("%s is invalid", fieldErr.Field()))
			}
		} else {
			violations = append(violations, err.Error())
		}
	}

	if !models.IsValidAlertType(rule.Trigger.AlertType) {
		violations = append(violations, fmt.Sprintf("unknown trigger alert_type: %s", rule.Trigger.AlertType))
	}
	if rule.Trigger.MinSeverity != "" && rule.Trigger.MinSeverity.Rank() == 0 {
		violations = append(violations, fmt.Sprintf("unknown min_severity: %s", rule.Trigger.MinSeverity))
	}
	if !models.IsValidTaskType(rule.Action.TaskType) {
		violations = append(violations, fmt.Sprintf("unknown action task_type: %s", rule.Action.TaskType))
	}
	switch rule.Action.Schedule {
	case models.ScheduleImmediate:
	case models.ScheduleRecurring:
		if rule.Action.Frequency == nil || !models.IsValidFrequency(*rule.Action.Frequency) {
			violations = append(violations, "recurring actions require a valid frequency")
		}
	case models.ScheduleConditional:
		violations = append(violations, "rule actions cannot schedule conditional tasks")
	default:
		violations = append(violations, fmt.Sprintf("unknown action schedule_type: %s", rule.Action.Schedule))
	}

	if len(violations) > 0 {
		return utils.NewAppError(utils.ErrCodeValidation,
			"Automation rule is invalid", strings.Join(violations, "; "))
	}
	return nil
}

// GetRule returns one rule.
func (e *RuleEngine) GetRule(ctx context.Context, ruleID, businessID string) (*models.AutomationRule, error) {
	rule, err := e.storage.GetRule(ctx, ruleID, businessID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Automation rule not found: %s", ruleID), "")
	}
	return rule, nil
}

// ListRules returns rules matching the filter.
func (e *RuleEngine) ListRules(ctx context.Context, filter models.RuleFilter) ([]*models.AutomationRule, error) {
	return e.storage.GetRules(ctx, filter)
}

// HandleAlert applies the business's rules to a new alert. Errors from
// individual rules are swallowed after logging so the alert pipeline
// continues.
func (e *RuleEngine) HandleAlert(ctx context.Context, business *models.Business, alert *models.Alert) error {
	_, err := e.Apply(ctx, alert)
	return err
}

// Apply evaluates every active rule for the alert's business and schedules
// the actions of those that match.
func (e *RuleEngine) Apply(ctx context.Context, alert *models.Alert) (*ApplyResult, error) {
	active := true
	rules, err := e.storage.GetRules(ctx, models.RuleFilter{
		BusinessID: &alert.BusinessID,
		Active:     &active,
	})
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Evaluated: len(rules)}
	for _, rule := range rules {
		if !rule.Trigger.Matches(alert) {
			continue
		}

		taskID, err := e.fireRule(ctx, rule, alert)
		if err != nil {
			e.mu.Lock()
			e.stats.RuleErrors++
			e.mu.Unlock()
			e.logger.WithError(err).WithFields(logrus.Fields{
				"rule_id":  rule.ID,
				"alert_id": alert.ID,
			}).Warn("Automation rule failed to fire")
			continue
		}
		result.Fired++
		result.TaskIDs = append(result.TaskIDs, taskID)
	}

	e.mu.Lock()
	e.stats.RulesEvaluated += int64(len(rules))
	e.stats.RulesFired += int64(result.Fired)
	e.mu.Unlock()

	return result, nil
}

func (e *RuleEngine) fireRule(ctx context.Context, rule *models.AutomationRule, alert *models.Alert) (string, error) {
	config := make(map[string]interface{}, len(rule.Action.Config)+2)
	for k, v := range rule.Action.Config {
		config[k] = v
	}
	config["triggered_by_rule"] = rule.ID
	config["triggered_by_alert"] = alert.ID

	task, err := e.scheduler.ScheduleTask(ctx, &scheduler.ScheduleRequest{
		BusinessID: rule.BusinessID,
		Type:       rule.Action.TaskType,
		Schedule:   rule.Action.Schedule,
		Frequency:  rule.Action.Frequency,
		Priority:   rule.Action.Priority,
		Config:     config,
	})
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rule.LastFired = &now
	rule.UpdatedAt = now
	if err := e.storage.SaveRule(ctx, rule); err != nil {
		e.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to record rule firing time")
	}

	if e.metrics != nil {
		e.metrics.GetPrometheusMetrics().RecordRuleFired(string(alert.Type), string(rule.Action.TaskType))
	}

	e.logger.WithFields(logrus.Fields{
		"rule_id":  rule.ID,
		"alert_id": alert.ID,
		"task_id":  task.ID,
	}).Info("Automation rule fired")
	return task.ID, nil
}

// GetStats returns a snapshot of engine statistics.
func (e *RuleEngine) GetStats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := e.stats
	return &stats
}
