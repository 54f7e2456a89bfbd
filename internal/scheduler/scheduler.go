// File: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Scheduler defines the task scheduling interface
type Scheduler interface {
	// Task lifecycle
	ScheduleTask(ctx context.Context, req *ScheduleRequest) (*models.Task, error)
	CancelTask(ctx context.Context, taskID string) (*models.Task, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResult, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) (*TaskListResult, error)

	// Conditional activation
	ActivateConditionalTasks(ctx context.Context, alert *models.Alert) (int, error)

	// Execution
	ExecuteDueTasks(ctx context.Context, now time.Time) (*ExecutionSummary, error)

	// Statistics
	GetStats() *SchedulerStats
}

// ScheduleRequest describes a task to be scheduled.
type ScheduleRequest struct {
	BusinessID string                   `json:"business_id"`
	CampaignID *string                  `json:"campaign_id,omitempty"`
	Type       models.TaskType          `json:"task_type"`
	Schedule   models.ScheduleType      `json:"schedule_type"`
	Frequency  *models.Frequency        `json:"frequency,omitempty"`
	StartAt    *time.Time               `json:"start_at,omitempty"`
	Priority   int                      `json:"priority,omitempty"`
	MaxRetries *int                     `json:"max_retries,omitempty"`
	AutoRetry  *bool                    `json:"auto_retry,omitempty"`
	Config     map[string]interface{}   `json:"config,omitempty"`
	Trigger    *models.TriggerCondition `json:"trigger,omitempty"`
}

// TaskStatusResult combines a task with its recent execution history.
type TaskStatusResult struct {
	Task *models.Task               `json:"task"`
	Logs []*models.TaskExecutionLog `json:"logs"`
}

// TaskListResult is a filtered task listing with per-status counts.
type TaskListResult struct {
	Tasks   []*models.Task           `json:"tasks"`
	Summary models.TaskStatusSummary `json:"summary"`
}

// SchedulerStats tracks scheduling activity since startup.
type SchedulerStats struct {
	TasksScheduled  int64      `json:"tasks_scheduled"`
	TasksCancelled  int64      `json:"tasks_cancelled"`
	TasksActivated  int64      `json:"tasks_activated"`
	ExecutionPasses int64      `json:"execution_passes"`
	TasksExecuted   int64      `json:"tasks_executed"`
	TasksSucceeded  int64      `json:"tasks_succeeded"`
	TasksFailed     int64      `json:"tasks_failed"`
	TasksRetried    int64      `json:"tasks_retried"`
	LastPass        *time.Time `json:"last_pass,omitempty"`
}

// Config holds scheduler and executor settings.
type Config struct {
	BatchSize      int           `json:"batch_size"`
	Concurrency    int           `json:"concurrency"`
	HandlerTimeout time.Duration `json:"handler_timeout"`
}

const (
	defaultPriority   = 3
	defaultMaxRetries = 3
	minPriority       = 1
	maxPriority       = 5
)

// TaskScheduler implements the Scheduler interface
type TaskScheduler struct {
	storage  storage.Storage
	registry *Registry
	logger   *logrus.Logger
	config   *Config
	metrics  *metrics.Manager

	mu    sync.RWMutex
	stats SchedulerStats
}

// NewTaskScheduler creates a new task scheduler
func NewTaskScheduler(store storage.Storage, registry *Registry, config *Config, metricsManager *metrics.Manager) *TaskScheduler {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 2 * time.Minute
	}

	return &TaskScheduler{
		storage:  store,
		registry: registry,
		logger:   utils.GetLogger(),
		config:   config,
		metrics:  metricsManager,
	}
}

// ScheduleTask validates the request and persists a new task.
func (s *TaskScheduler) ScheduleTask(ctx context.Context, req *ScheduleRequest) (*models.Task, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	id, err := utils.GenerateID()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate task ID", err.Error())
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:         id,
		BusinessID: req.BusinessID,
		CampaignID: req.CampaignID,
		Type:       req.Type,
		Schedule:   req.Schedule,
		Frequency:  req.Frequency,
		Priority:   req.Priority,
		MaxRetries: defaultMaxRetries,
		AutoRetry:  true,
		Config:     req.Config,
		Trigger:    req.Trigger,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if task.Priority == 0 {
		task.Priority = defaultPriority
	}
	if req.MaxRetries != nil {
		task.MaxRetries = *req.MaxRetries
	}
	if req.AutoRetry != nil {
		task.AutoRetry = *req.AutoRetry
	}

	switch req.Schedule {
	case models.ScheduleImmediate:
		startAt := now
		if req.StartAt != nil && req.StartAt.After(now) {
			startAt = req.StartAt.UTC()
		}
		task.NextRun = &startAt
		task.Status = models.TaskStatusPending
	case models.ScheduleRecurring:
		startAt := now
		if req.StartAt != nil && req.StartAt.After(now) {
			startAt = req.StartAt.UTC()
		}
		task.NextRun = &startAt
		task.Status = models.TaskStatusScheduled
	case models.ScheduleConditional:
		// dormant until a matching alert arrives
		task.Status = models.TaskStatusScheduled
	}

	if err := s.storage.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	s.appendLog(ctx, task, models.OutcomeScheduled,
		fmt.Sprintf("Task scheduled (%s, %s)", task.Type, task.Schedule), 0, 0)

	s.mu.Lock()
	s.stats.TasksScheduled++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.GetPrometheusMetrics().RecordTaskScheduled(string(task.Type), string(task.Schedule))
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"business_id": task.BusinessID,
		"task_type":   task.Type,
		"schedule":    task.Schedule,
	}).Info("Task scheduled")

	return task, nil
}

func (s *TaskScheduler) validateRequest(ctx context.Context, req *ScheduleRequest) error {
	if req == nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Schedule request is required", "")
	}
	if req.BusinessID == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "business_id is required", "")
	}
	if !models.IsValidTaskType(req.Type) {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Unknown task type: %s", req.Type), "")
	}
	if _, err := s.registry.Resolve(req.Type); err != nil {
		return err
	}

	switch req.Schedule {
	case models.ScheduleImmediate:
	case models.ScheduleRecurring:
		if req.Frequency == nil || !models.IsValidFrequency(*req.Frequency) {
			return utils.NewAppError(utils.ErrCodeValidation,
				"Recurring tasks require a valid frequency", "daily, weekly, monthly or quarterly")
		}
	case models.ScheduleConditional:
		if req.Trigger == nil {
			return utils.NewAppError(utils.ErrCodeValidation,
				"Conditional tasks require a trigger condition", "")
		}
		if !models.IsValidAlertType(req.Trigger.AlertType) {
			return utils.NewAppError(utils.ErrCodeValidation,
				fmt.Sprintf("Unknown trigger alert type: %s", req.Trigger.AlertType), "")
		}
	default:
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Unknown schedule type: %s", req.Schedule), "")
	}

	if req.Priority != 0 && (req.Priority < minPriority || req.Priority > maxPriority) {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Priority must be between %d and %d", minPriority, maxPriority), "")
	}
	if req.MaxRetries != nil && *req.MaxRetries < 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "max_retries must not be negative", "")
	}

	business, err := s.storage.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return err
	}
	if business == nil {
		return utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Business not found: %s", req.BusinessID), "")
	}
	return nil
}

// CancelTask cancels a task that has not reached a terminal state. Running
// tasks finish their current attempt; cancellation only prevents future runs.
func (s *TaskScheduler) CancelTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.storage.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Task not found: %s", taskID), "")
	}
	if task.Status.IsTerminal() {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Task is already %s", task.Status), taskID)
	}
	// Cancellation is cooperative. A running execution is not interrupted,
	// but the task will not be selected again.
	task.Status = models.TaskStatusCancelled
	task.NextRun = nil
	task.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.appendLog(ctx, task, models.OutcomeCancelled, "Task cancelled", task.RetryCount, 0)

	s.mu.Lock()
	s.stats.TasksCancelled++
	s.mu.Unlock()

	s.logger.WithField("task_id", taskID).Info("Task cancelled")
	return task, nil
}

// GetTaskStatus returns a task with its recent execution history.
func (s *TaskScheduler) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResult, error) {
	task, err := s.storage.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Task not found: %s", taskID), "")
	}

	logs, err := s.storage.GetTaskLogs(ctx, taskID, 20)
	if err != nil {
		return nil, err
	}
	return &TaskStatusResult{Task: task, Logs: logs}, nil
}

// ListTasks returns tasks matching the filter plus per-status counts for the
// same filter without pagination applied.
func (s *TaskScheduler) ListTasks(ctx context.Context, filter models.TaskFilter) (*TaskListResult, error) {
	tasks, err := s.storage.GetTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	countFilter := filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	counts, err := s.storage.GetTaskCounts(ctx, countFilter)
	if err != nil {
		return nil, err
	}

	summary := models.TaskStatusSummary{Counts: counts}
	for _, c := range counts {
		summary.Total += c
	}
	return &TaskListResult{Tasks: tasks, Summary: summary}, nil
}

// ActivateConditionalTasks arms dormant conditional tasks whose trigger
// matches the alert. Armed tasks become due immediately.
func (s *TaskScheduler) ActivateConditionalTasks(ctx context.Context, alert *models.Alert) (int, error) {
	dormant := []models.TaskStatus{models.TaskStatusScheduled}
	tasks, err := s.storage.GetTasks(ctx, models.TaskFilter{
		BusinessID: &alert.BusinessID,
		Statuses:   dormant,
	})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	activated := 0
	for _, task := range tasks {
		if task.Schedule != models.ScheduleConditional || task.Trigger == nil {
			continue
		}
		if task.NextRun != nil {
			// already armed
			continue
		}
		if task.Trigger.AlertType != alert.Type {
			continue
		}
		if !alert.Severity.AtLeast(task.Trigger.MinSeverity) {
			continue
		}

		runAt := now
		task.NextRun = &runAt
		task.Status = models.TaskStatusScheduled
		task.UpdatedAt = now
		if err := s.storage.UpdateTask(ctx, task); err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to activate conditional task")
			continue
		}
		activated++

		s.logger.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"alert_id":   alert.ID,
			"alert_type": alert.Type,
		}).Info("Conditional task activated")
	}

	if activated > 0 {
		s.mu.Lock()
		s.stats.TasksActivated += int64(activated)
		s.mu.Unlock()
	}
	return activated, nil
}

// HandleAlert lets the scheduler act as an alert sink: new alerts arm any
// matching dormant conditional tasks.
func (s *TaskScheduler) HandleAlert(ctx context.Context, business *models.Business, alert *models.Alert) error {
	_, err := s.ActivateConditionalTasks(ctx, alert)
	return err
}

// GetStats returns a snapshot of scheduler statistics.
func (s *TaskScheduler) GetStats() *SchedulerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	return &stats
}

func (s *TaskScheduler) appendLog(ctx context.Context, task *models.Task, outcome, message string, attempt int, duration time.Duration) {
	log := &models.TaskExecutionLog{
		TaskID:     task.ID,
		BusinessID: task.BusinessID,
		Outcome:    outcome,
		Message:    message,
		Attempt:    attempt,
		Duration:   duration,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.storage.AppendTaskLog(ctx, log); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to append task log")
	}
}
