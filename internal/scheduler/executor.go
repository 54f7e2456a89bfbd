// File: internal/scheduler/executor.go
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// ExecutionSummary reports the result of one executor pass.
type ExecutionSummary struct {
	Selected  int           `json:"selected"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Retried   int           `json:"retried"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// ExecuteDueTasks selects due tasks and runs them with bounded concurrency.
// Selection and execution are not atomic: a crash after a handler ran but
// before the task row was updated leaves the task due, so the next pass runs
// it again. Handlers are expected to tolerate at-least-once execution.
func (s *TaskScheduler) ExecuteDueTasks(ctx context.Context, now time.Time) (*ExecutionSummary, error) {
	started := time.Now()
	summary := &ExecutionSummary{StartedAt: started.UTC()}

	tasks, err := s.storage.GetDueTasks(ctx, now, s.config.BatchSize)
	if err != nil {
		return nil, err
	}
	summary.Selected = len(tasks)

	if s.metrics != nil {
		s.metrics.GetPrometheusMetrics().UpdateTasksDue(len(tasks))
	}
	if len(tasks) == 0 {
		summary.Duration = time.Since(started)
		return summary, nil
	}

	s.logger.WithFields(logrus.Fields{
		"selected":    len(tasks),
		"concurrency": s.config.Concurrency,
	}).Info("Executing due tasks")

	var (
		mu                         sync.Mutex
		succeeded, failed, retried int
	)

	sem := make(chan struct{}, s.config.Concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(task *models.Task) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.executeTask(ctx, task, now)
			mu.Lock()
			switch outcome {
			case models.OutcomeCompleted:
				succeeded++
			case models.OutcomeRetryScheduled:
				retried++
			default:
				failed++
			}
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	summary.Succeeded = succeeded
	summary.Failed = failed
	summary.Retried = retried
	summary.Duration = time.Since(started)

	s.mu.Lock()
	s.stats.ExecutionPasses++
	s.stats.TasksExecuted += int64(len(tasks))
	s.stats.TasksSucceeded += int64(succeeded)
	s.stats.TasksFailed += int64(failed)
	s.stats.TasksRetried += int64(retried)
	passTime := time.Now().UTC()
	s.stats.LastPass = &passTime
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"selected":  summary.Selected,
		"succeeded": succeeded,
		"failed":    failed,
		"retried":   retried,
		"duration":  summary.Duration,
	}).Info("Executor pass completed")

	return summary, nil
}

// executeTask runs one task attempt end to end and returns the audit outcome.
func (s *TaskScheduler) executeTask(ctx context.Context, task *models.Task, now time.Time) string {
	logger := s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"business_id": task.BusinessID,
		"task_type":   task.Type,
		"attempt":     task.RetryCount + 1,
	})

	task.Status = models.TaskStatusRunning
	runAt := now.UTC()
	task.LastRun = &runAt
	task.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateTask(ctx, task); err != nil {
		logger.WithError(err).Error("Failed to mark task running")
		return models.OutcomeFailed
	}

	result, execErr, duration := s.runHandler(ctx, task)

	if execErr != nil {
		logger.WithError(execErr).WithField("duration", duration).Warn("Task execution failed")
		return s.handleFailure(ctx, task, execErr, duration)
	}

	task.Result = result
	task.Error = nil
	task.RetryCount = 0
	task.UpdatedAt = time.Now().UTC()

	if task.Schedule == models.ScheduleRecurring && task.Frequency != nil {
		next := task.Frequency.NextAfter(runAt)
		task.NextRun = &next
		task.Status = models.TaskStatusScheduled
	} else {
		completedAt := time.Now().UTC()
		task.NextRun = nil
		task.Status = models.TaskStatusCompleted
		task.CompletedAt = &completedAt
	}

	if err := s.storage.UpdateTask(ctx, task); err != nil {
		logger.WithError(err).Error("Failed to persist task result")
		return models.OutcomeFailed
	}

	s.appendLog(ctx, task, models.OutcomeCompleted, "Task completed", task.RetryCount, duration)
	if s.metrics != nil {
		s.metrics.GetPrometheusMetrics().RecordTaskExecution(string(task.Type), models.OutcomeCompleted, duration)
	}

	logger.WithField("duration", duration).Info("Task completed")
	return models.OutcomeCompleted
}

// runHandler invokes the task handler under a timeout, converting panics
// into handler errors so one bad task cannot take down the executor pass.
func (s *TaskScheduler) runHandler(ctx context.Context, task *models.Task) (result map[string]interface{}, err error, duration time.Duration) {
	handler, resolveErr := s.registry.Resolve(task.Type)
	if resolveErr != nil {
		return nil, resolveErr, 0
	}

	handlerCtx, cancel := context.WithTimeout(ctx, s.config.HandlerTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		duration = time.Since(started)
		if r := recover(); r != nil {
			err = utils.NewAppError(utils.ErrCodeHandler,
				fmt.Sprintf("Handler panicked: %v", r), string(task.Type))
		}
	}()

	result, err = handler(handlerCtx, task)
	return result, err, time.Since(started)
}

// handleFailure applies retry policy: exponential backoff in minutes while
// retries remain, terminal failure otherwise.
func (s *TaskScheduler) handleFailure(ctx context.Context, task *models.Task, execErr error, duration time.Duration) string {
	errText := execErr.Error()
	task.Error = &errText
	task.UpdatedAt = time.Now().UTC()

	if task.AutoRetry && task.RetryCount < task.MaxRetries {
		task.RetryCount++
		backoff := time.Duration(math.Pow(2, float64(task.RetryCount))) * time.Minute
		next := time.Now().UTC().Add(backoff)
		task.NextRun = &next
		task.Status = models.TaskStatusPending

		if err := s.storage.UpdateTask(ctx, task); err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to persist retry schedule")
			return models.OutcomeFailed
		}

		s.appendLog(ctx, task, models.OutcomeRetryScheduled,
			fmt.Sprintf("Retry %d/%d in %s: %s", task.RetryCount, task.MaxRetries, backoff, errText),
			task.RetryCount, duration)
		if s.metrics != nil {
			s.metrics.GetPrometheusMetrics().RecordTaskRetry(string(task.Type))
			s.metrics.GetPrometheusMetrics().RecordTaskExecution(string(task.Type), models.OutcomeRetryScheduled, duration)
		}
		return models.OutcomeRetryScheduled
	}

	task.Status = models.TaskStatusFailed
	task.NextRun = nil
	if err := s.storage.UpdateTask(ctx, task); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to persist task failure")
	}

	s.appendLog(ctx, task, models.OutcomeFailed,
		fmt.Sprintf("Task failed after %d attempts: %s", task.RetryCount+1, errText),
		task.RetryCount, duration)
	if s.metrics != nil {
		s.metrics.GetPrometheusMetrics().RecordTaskExecution(string(task.Type), models.OutcomeFailed, duration)
	}
	return models.OutcomeFailed
}
