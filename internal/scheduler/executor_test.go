// File: internal/scheduler/executor_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/orchestrator/internal/models"
)

func scheduleDue(t *testing.T, s *TaskScheduler, store *fakeStore, req *ScheduleRequest) *models.Task {
	t.Helper()
	task, err := s.ScheduleTask(context.Background(), req)
	require.NoError(t, err)
	return task
}

func TestExecuteDueTasksSuccess(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")

	var calls int32
	s := newTestScheduler(store, map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			atomic.AddInt32(&calls, 1)
			return map[string]interface{}{"checked": 12}, nil
		},
	})
	ctx := context.Background()

	task := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
	})

	summary, err := s.ExecuteDueTasks(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Selected)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stored := store.taskByID(task.ID)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	assert.Nil(t, stored.NextRun)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 12, stored.Result["checked"])
	assert.Nil(t, stored.Error)
	assert.Contains(t, store.outcomesFor(task.ID), models.OutcomeCompleted)
}

func TestExecuteRecurringTaskReArms(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, nil)

	freq := models.FrequencyDaily
	task := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleRecurring,
		Frequency:  &freq,
	})

	now := time.Now().UTC()
	summary, err := s.ExecuteDueTasks(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	stored := store.taskByID(task.ID)
	assert.Equal(t, models.TaskStatusScheduled, stored.Status, "recurring tasks re-arm instead of completing")
	require.NotNil(t, stored.NextRun)
	assert.WithinDuration(t, now.Add(24*time.Hour), *stored.NextRun, 2*time.Second)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, 0, stored.RetryCount)
}

func TestExecuteFailureSchedulesRetryWithBackoff(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			return nil, errors.New("upstream unavailable")
		},
	})

	task := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
	})

	now := time.Now().UTC()
	summary, err := s.ExecuteDueTasks(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 0, summary.Failed)

	stored := store.taskByID(task.ID)
	assert.Equal(t, models.TaskStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "upstream unavailable")

	// first retry backs off 2^1 minutes
	require.NotNil(t, stored.NextRun)
	assert.WithinDuration(t, now.Add(2*time.Minute), *stored.NextRun, 5*time.Second)
	assert.Contains(t, store.outcomesFor(task.ID), models.OutcomeRetryScheduled)
}

func TestExecuteExhaustedRetriesFailsTerminally(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			return nil, errors.New("still broken")
		},
	})

	maxRetries := 0
	task := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
		MaxRetries: &maxRetries,
	})

	summary, err := s.ExecuteDueTasks(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	stored := store.taskByID(task.ID)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
	assert.Nil(t, stored.NextRun)
	assert.Contains(t, store.outcomesFor(task.ID), models.OutcomeFailed)
}

func TestExecuteAutoRetryDisabled(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			return nil, errors.New("nope")
		},
	})

	autoRetry := false
	task := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
		AutoRetry:  &autoRetry,
	})

	summary, err := s.ExecuteDueTasks(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.TaskStatusFailed, store.taskByID(task.ID).Status)
}

func TestExecutePanicIsContained(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			panic("handler bug")
		},
		models.TaskTypeTrafficReport: func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			return map[string]interface{}{"ok": true}, nil
		},
	})
	ctx := context.Background()

	autoRetry := false
	panicking := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
		AutoRetry:  &autoRetry,
	})
	healthy := scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeTrafficReport,
		Schedule:   models.ScheduleImmediate,
	})

	summary, err := s.ExecuteDueTasks(ctx, time.Now().UTC())
	require.NoError(t, err, "a panicking handler must not abort the pass")
	assert.Equal(t, 2, summary.Selected)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	failed := store.taskByID(panicking.ID)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "Handler panicked")

	assert.Equal(t, models.TaskStatusCompleted, store.taskByID(healthy.ID).Status)
}

func TestExecuteRespectsConcurrencyLimit(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")

	var running, peak int32
	handler := func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	}

	registry := NewRegistry()
	require.NoError(t, registry.Register(models.TaskTypeRankCheck, handler))
	s := NewTaskScheduler(store, registry, &Config{Concurrency: 2, BatchSize: 10}, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		scheduleDue(t, s, store, &ScheduleRequest{
			BusinessID: "biz-1",
			Type:       models.TaskTypeRankCheck,
			Schedule:   models.ScheduleImmediate,
		})
	}

	summary, err := s.ExecuteDueTasks(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2), "concurrency cap exceeded")
}

func TestExecuteEmptyPass(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store, nil)

	summary, err := s.ExecuteDueTasks(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Selected)

	stats := s.GetStats()
	assert.Equal(t, int64(0), stats.ExecutionPasses, "empty passes are not counted")
}

func TestExecuteBatchLimit(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")

	registry := NewRegistry()
	require.NoError(t, registry.Register(models.TaskTypeRankCheck,
		func(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
			return nil, nil
		}))
	s := NewTaskScheduler(store, registry, &Config{BatchSize: 2, Concurrency: 2}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		scheduleDue(t, s, store, &ScheduleRequest{
			BusinessID: "biz-1",
			Type:       models.TaskTypeRankCheck,
			Schedule:   models.ScheduleImmediate,
		})
	}

	summary, err := s.ExecuteDueTasks(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Selected, "a pass never exceeds the batch size")
}

func TestSchedulerStats(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	s := newTestScheduler(store, nil)
	ctx := context.Background()

	scheduleDue(t, s, store, &ScheduleRequest{
		BusinessID: "biz-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
	})
	_, err := s.ExecuteDueTasks(ctx, time.Now().UTC())
	require.NoError(t, err)

	stats := s.GetStats()
	assert.Equal(t, int64(1), stats.TasksScheduled)
	assert.Equal(t, int64(1), stats.ExecutionPasses)
	assert.Equal(t, int64(1), stats.TasksExecuted)
	assert.Equal(t, int64(1), stats.TasksSucceeded)
	require.NotNil(t, stats.LastPass)
}
