// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/marketpulse/orchestrator/internal/models"
)

// Storage defines the persistence interface for the orchestration core.
// The core treats it as an opaque repository over tasks, alerts, channel
// configurations, automation rules and metric snapshots.
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Business operations
	SaveBusiness(ctx context.Context, business *models.Business) error
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetActiveBusinesses(ctx context.Context, limit int) ([]*models.Business, error)

	// Task operations
	SaveTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	GetTaskCounts(ctx context.Context, filter models.TaskFilter) (map[models.TaskStatus]int64, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	GetDueTasks(ctx context.Context, now time.Time, limit int) ([]*models.Task, error)
	AppendTaskLog(ctx context.Context, log *models.TaskExecutionLog) error
	GetTaskLogs(ctx context.Context, taskID string, limit int) ([]*models.TaskExecutionLog, error)

	// Alert configuration operations
	SaveAlertConfiguration(ctx context.Context, cfg *models.AlertConfiguration) error
	GetAlertConfiguration(ctx context.Context, businessID string, alertType models.AlertType) (*models.AlertConfiguration, error)
	GetAlertConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id, businessID string) (*models.Alert, error)
	GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id, businessID string, status models.AlertStatus, at time.Time) error

	// Channel configuration operations
	SaveChannel(ctx context.Context, channel *models.ChannelConfiguration) error
	GetChannel(ctx context.Context, id, businessID string) (*models.ChannelConfiguration, error)
	GetChannelByName(ctx context.Context, businessID, name string) (*models.ChannelConfiguration, error)
	GetChannels(ctx context.Context, businessID string, activeOnly bool) ([]*models.ChannelConfiguration, error)
	DeleteChannel(ctx context.Context, id, businessID string) error

	// Automation rule operations
	SaveRule(ctx context.Context, rule *models.AutomationRule) error
	GetRule(ctx context.Context, id, businessID string) (*models.AutomationRule, error)
	GetRules(ctx context.Context, filter models.RuleFilter) ([]*models.AutomationRule, error)

	// Metric snapshot operations
	SaveRankingSnapshot(ctx context.Context, snapshot *models.RankingSnapshot) error
	GetRankingSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.RankingSnapshot, error)
	SaveTrafficSnapshot(ctx context.Context, snapshot *models.TrafficSnapshot) error
	GetTrafficSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.TrafficSnapshot, error)
	SaveAuditSnapshot(ctx context.Context, snapshot *models.AuditSnapshot) error
	GetAuditSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.AuditSnapshot, error)
	SaveCompetitorSnapshot(ctx context.Context, snapshot *models.CompetitorSnapshot) error
	GetCompetitorSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.CompetitorSnapshot, error)

	// Statistics
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalBusinesses int64      `json:"total_businesses"`
	TotalTasks      int64      `json:"total_tasks"`
	TotalAlerts     int64      `json:"total_alerts"`
	TotalChannels   int64      `json:"total_channels"`
	TotalRules      int64      `json:"total_rules"`
	OldestTask      *time.Time `json:"oldest_task,omitempty"`
	LatestAlert     *time.Time `json:"latest_alert,omitempty"`
}

// StorageHealth describes backend health for the health endpoint.
type StorageHealth struct {
	StorageType string            `json:"storage_type"`
	Healthy     bool              `json:"healthy"`
	Details     map[string]string `json:"details,omitempty"`
	LastPing    time.Time         `json:"last_ping"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
