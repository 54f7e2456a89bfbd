// File: test/integration/storage_test.go
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

func newSQLiteStorage(t *testing.T) storage.Storage {
	t.Helper()

	cfg := &storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "orchestrator_test.db"),
		MaxConnections:   10,
		MaxIdleTime:      15 * time.Minute,
	}

	utils.InitLogger("error", "text", "stdout", "")

	store, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Connect(); err != nil {
		t.Fatalf("Failed to connect to storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Failed to migrate storage: %v", err)
	}
	if err := store.Ping(); err != nil {
		t.Fatalf("Failed to ping storage: %v", err)
	}
	return store
}

func TestSQLiteStorage(t *testing.T) {
	store := newSQLiteStorage(t)
	t.Logf("✓ Storage connection and migration successful")

	t.Run("Business Operations", func(t *testing.T) { testBusinessOperations(t, store) })
	t.Run("Task Operations", func(t *testing.T) { testTaskOperations(t, store) })
	t.Run("Alert Operations", func(t *testing.T) { testAlertOperations(t, store) })
	t.Run("Channel Operations", func(t *testing.T) { testChannelOperations(t, store) })
	t.Run("Rule Operations", func(t *testing.T) { testRuleOperations(t, store) })
	t.Run("Snapshot Operations", func(t *testing.T) { testSnapshotOperations(t, store) })
	t.Run("Statistics", func(t *testing.T) { testStatistics(t, store) })
}

func testBusinessOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()

	business := &models.Business{
		ID:        "biz-storage-1",
		Name:      "Acme Bakery",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SaveBusiness(ctx, business); err != nil {
		t.Fatalf("Failed to save business: %v", err)
	}
	t.Logf("✓ Business saved successfully")

	retrieved, err := store.GetBusiness(ctx, business.ID)
	if err != nil {
		t.Fatalf("Failed to get business: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Business not found")
	}
	if retrieved.Name != business.Name {
		t.Errorf("Expected business name %s, got %s", business.Name, retrieved.Name)
	}

	active, err := store.GetActiveBusinesses(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list active businesses: %v", err)
	}
	if len(active) == 0 {
		t.Fatal("No active businesses found")
	}
	t.Logf("✓ Active businesses listed: %d", len(active))
}

func testTaskOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()
	nextRun := now.Add(-time.Minute)

	task := &models.Task{
		ID:         "task-storage-1",
		BusinessID: "biz-storage-1",
		Type:       models.TaskTypeRankCheck,
		Schedule:   models.ScheduleImmediate,
		Status:     models.TaskStatusPending,
		Priority:   4,
		MaxRetries: 3,
		AutoRetry:  true,
		NextRun:    &nextRun,
		Config:     map[string]interface{}{"keywords": []interface{}{"bakery near me"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("Failed to save task: %v", err)
	}
	t.Logf("✓ Task saved successfully")

	retrieved, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Task not found")
	}
	if retrieved.Type != models.TaskTypeRankCheck {
		t.Errorf("Expected task type %s, got %s", models.TaskTypeRankCheck, retrieved.Type)
	}
	if retrieved.Config["keywords"] == nil {
		t.Error("Task config was not round-tripped")
	}

	due, err := store.GetDueTasks(ctx, now, 10)
	if err != nil {
		t.Fatalf("Failed to get due tasks: %v", err)
	}
	if len(due) == 0 {
		t.Fatal("Expected the task to be due")
	}
	t.Logf("✓ Due tasks queried: %d", len(due))

	retrieved.Status = models.TaskStatusCompleted
	completedAt := now
	retrieved.CompletedAt = &completedAt
	retrieved.NextRun = nil
	retrieved.Result = map[string]interface{}{"keywords_checked": float64(3)}
	if err := store.UpdateTask(ctx, retrieved); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}

	updated, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to re-read task: %v", err)
	}
	if updated.Status != models.TaskStatusCompleted {
		t.Errorf("Expected status completed, got %s", updated.Status)
	}
	if updated.NextRun != nil {
		t.Error("Expected next run to be cleared")
	}
	t.Logf("✓ Task updated successfully")

	businessID := "biz-storage-1"
	filter := models.TaskFilter{
		BusinessID: &businessID,
		Statuses:   []models.TaskStatus{models.TaskStatusCompleted},
		Limit:      10,
	}
	tasks, err := store.GetTasks(ctx, filter)
	if err != nil {
		t.Fatalf("Failed to filter tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 completed task, got %d", len(tasks))
	}

	counts, err := store.GetTaskCounts(ctx, models.TaskFilter{BusinessID: &businessID})
	if err != nil {
		t.Fatalf("Failed to count tasks: %v", err)
	}
	if counts[models.TaskStatusCompleted] != 1 {
		t.Errorf("Expected 1 completed in counts, got %d", counts[models.TaskStatusCompleted])
	}
	t.Logf("✓ Tasks filtered and counted")

	log := &models.TaskExecutionLog{
		TaskID:     task.ID,
		BusinessID: task.BusinessID,
		Outcome:    models.OutcomeCompleted,
		Message:    "Checked 3 keywords",
		Attempt:    1,
		Duration:   120 * time.Millisecond,
		CreatedAt:  now,
	}
	if err := store.AppendTaskLog(ctx, log); err != nil {
		t.Fatalf("Failed to append task log: %v", err)
	}
	logs, err := store.GetTaskLogs(ctx, task.ID, 10)
	if err != nil {
		t.Fatalf("Failed to read task logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Outcome != models.OutcomeCompleted {
		t.Errorf("Expected outcome completed, got %s", logs[0].Outcome)
	}
	t.Logf("✓ Task audit trail written and read")
}

func testAlertOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()

	cfg := &models.AlertConfiguration{
		ID:             "alertcfg-storage-1",
		BusinessID:     "biz-storage-1",
		AlertType:      models.AlertTypeRankingDrop,
		Thresholds:     map[string]float64{models.ThresholdPositionDrop: 5},
		CheckFrequency: models.FrequencyDaily,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.SaveAlertConfiguration(ctx, cfg); err != nil {
		t.Fatalf("Failed to save alert configuration: %v", err)
	}

	loaded, err := store.GetAlertConfiguration(ctx, cfg.BusinessID, cfg.AlertType)
	if err != nil {
		t.Fatalf("Failed to get alert configuration: %v", err)
	}
	if loaded == nil {
		t.Fatal("Alert configuration not found")
	}
	if loaded.Thresholds[models.ThresholdPositionDrop] != 5 {
		t.Errorf("Expected threshold 5, got %v", loaded.Thresholds[models.ThresholdPositionDrop])
	}

	configs, err := store.GetAlertConfigurations(ctx, cfg.BusinessID)
	if err != nil {
		t.Fatalf("Failed to list alert configurations: %v", err)
	}
	if len(configs) == 0 {
		t.Fatal("No alert configurations found")
	}
	t.Logf("✓ Alert configuration saved and listed")

	previous := 4.0
	pct := 200.0
	alert := &models.Alert{
		ID:               "alert-storage-1",
		BusinessID:       "biz-storage-1",
		Type:             models.AlertTypeRankingDrop,
		Severity:         models.SeverityHigh,
		Title:            "Ranking drop detected",
		Message:          "Keyword 'bakery near me' dropped from position 4 to 12",
		TriggerData:      map[string]interface{}{"keyword": "bakery near me"},
		CurrentValue:     12,
		PreviousValue:    &previous,
		PercentageChange: &pct,
		Status:           models.AlertStatusActive,
		CreatedAt:        now,
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("Failed to save alert: %v", err)
	}

	retrieved, err := store.GetAlert(ctx, alert.ID, alert.BusinessID)
	if err != nil {
		t.Fatalf("Failed to get alert: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Alert not found")
	}
	if retrieved.Severity != models.SeverityHigh {
		t.Errorf("Expected severity high, got %s", retrieved.Severity)
	}
	if retrieved.PreviousValue == nil || *retrieved.PreviousValue != 4 {
		t.Error("Previous value was not round-tripped")
	}
	t.Logf("✓ Alert saved and retrieved")

	if err := store.UpdateAlertStatus(ctx, alert.ID, alert.BusinessID, models.AlertStatusAcknowledged, now); err != nil {
		t.Fatalf("Failed to acknowledge alert: %v", err)
	}
	acked, err := store.GetAlert(ctx, alert.ID, alert.BusinessID)
	if err != nil {
		t.Fatalf("Failed to re-read alert: %v", err)
	}
	if acked.Status != models.AlertStatusAcknowledged {
		t.Errorf("Expected status acknowledged, got %s", acked.Status)
	}
	if acked.AcknowledgedAt == nil {
		t.Error("Expected acknowledged_at to be set")
	}

	status := models.AlertStatusAcknowledged
	alerts, err := store.GetAlerts(ctx, models.AlertFilter{
		BusinessID: &alert.BusinessID,
		Status:     &status,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("Failed to filter alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("Expected 1 acknowledged alert, got %d", len(alerts))
	}
	t.Logf("✓ Alert lifecycle persisted")
}

func testChannelOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()

	channel := &models.ChannelConfiguration{
		ID:         "channel-storage-1",
		BusinessID: "biz-storage-1",
		Name:       "ops-room",
		Type:       models.ChannelTypeChatHook,
		Settings: models.ChannelSettings{
			URL: "https://hooks.example.com/services/T0/B0/x",
		},
		TriggerEvents: []string{string(models.AlertTypeRankingDrop)},
		Filters: &models.ChannelFilters{
			SeverityLevels: []models.AlertSeverity{models.SeverityHigh, models.SeverityCritical},
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SaveChannel(ctx, channel); err != nil {
		t.Fatalf("Failed to save channel: %v", err)
	}

	retrieved, err := store.GetChannel(ctx, channel.ID, channel.BusinessID)
	if err != nil {
		t.Fatalf("Failed to get channel: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Channel not found")
	}
	if retrieved.Settings.URL != channel.Settings.URL {
		t.Errorf("Expected URL %s, got %s", channel.Settings.URL, retrieved.Settings.URL)
	}
	if retrieved.Filters == nil || len(retrieved.Filters.SeverityLevels) != 2 {
		t.Error("Channel filters were not round-tripped")
	}

	byName, err := store.GetChannelByName(ctx, channel.BusinessID, channel.Name)
	if err != nil {
		t.Fatalf("Failed to get channel by name: %v", err)
	}
	if byName == nil || byName.ID != channel.ID {
		t.Error("Channel lookup by name failed")
	}

	channels, err := store.GetChannels(ctx, channel.BusinessID, true)
	if err != nil {
		t.Fatalf("Failed to list channels: %v", err)
	}
	if len(channels) != 1 {
		t.Errorf("Expected 1 active channel, got %d", len(channels))
	}
	t.Logf("✓ Channel saved, fetched, and listed")

	if err := store.DeleteChannel(ctx, channel.ID, channel.BusinessID); err != nil {
		t.Fatalf("Failed to delete channel: %v", err)
	}
	deleted, err := store.GetChannel(ctx, channel.ID, channel.BusinessID)
	if err != nil {
		t.Fatalf("Failed to re-read deleted channel: %v", err)
	}
	if deleted != nil {
		t.Error("Expected channel to be deleted")
	}
	t.Logf("✓ Channel deleted")
}

func testRuleOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()

	rule := &models.AutomationRule{
		ID:         "rule-storage-1",
		BusinessID: "biz-storage-1",
		Name:       "audit after score drop",
		Trigger: models.RuleTrigger{
			AlertType:   models.AlertTypeTechnicalScoreDrop,
			MinSeverity: models.SeverityMedium,
		},
		Action: models.RuleAction{
			TaskType: models.TaskTypeTechnicalAudit,
			Schedule: models.ScheduleImmediate,
			Priority: 4,
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.SaveRule(ctx, rule); err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}

	retrieved, err := store.GetRule(ctx, rule.ID, rule.BusinessID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Rule not found")
	}
	if retrieved.Trigger.AlertType != models.AlertTypeTechnicalScoreDrop {
		t.Errorf("Expected trigger %s, got %s", models.AlertTypeTechnicalScoreDrop, retrieved.Trigger.AlertType)
	}

	active := true
	rules, err := store.GetRules(ctx, models.RuleFilter{
		BusinessID: &rule.BusinessID,
		Active:     &active,
	})
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("Expected 1 active rule, got %d", len(rules))
	}
	t.Logf("✓ Rule saved and listed")
}

func testSnapshotOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()
	window := models.WindowEnding(now.Add(time.Minute), 7*24*time.Hour)

	ranking := &models.RankingSnapshot{
		ID:         "rank-storage-1",
		BusinessID: "biz-storage-1",
		Keyword:    "bakery near me",
		Position:   4,
		CapturedAt: now,
	}
	if err := store.SaveRankingSnapshot(ctx, ranking); err != nil {
		t.Fatalf("Failed to save ranking snapshot: %v", err)
	}
	rankings, err := store.GetRankingSnapshots(ctx, ranking.BusinessID, window)
	if err != nil {
		t.Fatalf("Failed to get ranking snapshots: %v", err)
	}
	if len(rankings) != 1 {
		t.Fatalf("Expected 1 ranking snapshot, got %d", len(rankings))
	}

	traffic := &models.TrafficSnapshot{
		ID:         "traffic-storage-1",
		BusinessID: "biz-storage-1",
		Resource:   "/menu",
		Visits:     740,
		CapturedAt: now,
	}
	if err := store.SaveTrafficSnapshot(ctx, traffic); err != nil {
		t.Fatalf("Failed to save traffic snapshot: %v", err)
	}

	audit := &models.AuditSnapshot{
		ID:             "audit-storage-1",
		BusinessID:     "biz-storage-1",
		Score:          84,
		CriticalIssues: 2,
		CapturedAt:     now,
	}
	if err := store.SaveAuditSnapshot(ctx, audit); err != nil {
		t.Fatalf("Failed to save audit snapshot: %v", err)
	}

	competitor := &models.CompetitorSnapshot{
		ID:                "competitor-storage-1",
		BusinessID:        "biz-storage-1",
		LowDifficultyGaps: 4,
		TotalGaps:         11,
		CapturedAt:        now,
	}
	if err := store.SaveCompetitorSnapshot(ctx, competitor); err != nil {
		t.Fatalf("Failed to save competitor snapshot: %v", err)
	}

	outside := models.WindowEnding(now.Add(-30*24*time.Hour), 7*24*time.Hour)
	old, err := store.GetRankingSnapshots(ctx, ranking.BusinessID, outside)
	if err != nil {
		t.Fatalf("Failed to query old window: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("Expected no snapshots outside the window, got %d", len(old))
	}
	t.Logf("✓ Snapshots saved for all four metric families")
}

func testStatistics(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	stats, err := store.GetStorageStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get storage stats: %v", err)
	}
	if stats.TotalBusinesses == 0 {
		t.Error("Expected at least one business in stats")
	}
	if stats.TotalTasks == 0 {
		t.Error("Expected at least one task in stats")
	}
	if stats.TotalAlerts == 0 {
		t.Error("Expected at least one alert in stats")
	}
	if stats.TotalRules == 0 {
		t.Error("Expected at least one rule in stats")
	}
	t.Logf("✓ Statistics: %d businesses, %d tasks, %d alerts, %d rules",
		stats.TotalBusinesses, stats.TotalTasks, stats.TotalAlerts, stats.TotalRules)
}
