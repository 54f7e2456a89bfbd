// File: internal/monitor/monitor.go
package monitor

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

// Engine defines the monitoring and alerting interface
type Engine interface {
	// Checks
	CheckBusiness(ctx context.Context, businessID string) (*CheckResult, error)
	CheckAll(ctx context.Context) (*CheckSummary, error)

	// Alert lifecycle
	AcknowledgeAlert(ctx context.Context, alertID, businessID string) (*models.Alert, error)
	ResolveAlert(ctx context.Context, alertID, businessID string) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error)

	// Configuration
	ConfigureAlert(ctx context.Context, cfg *models.AlertConfiguration) (*models.AlertConfiguration, error)
	GetConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error)

	// Statistics
	GetStats() *EngineStats
}

// AlertSink receives every newly persisted alert. Sinks run in registration
// order; a sink error is logged and does not block the others.
type AlertSink interface {
	HandleAlert(ctx context.Context, business *models.Business, alert *models.Alert) error
}

// CheckResult is the outcome of checking a single business.
type CheckResult struct {
	BusinessID string          `json:"business_id"`
	Alerts     []*models.Alert `json:"alerts"`
	Checked    []string        `json:"checked"`
	Duration   time.Duration   `json:"duration"`
}

// CheckSummary aggregates a full check pass over all active businesses.
type CheckSummary struct {
	Businesses int           `json:"businesses"`
	Alerts     int           `json:"alerts"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
}

// EngineStats tracks monitoring activity since startup.
type EngineStats struct {
	CheckPasses     int64      `json:"check_passes"`
	AlertsTriggered int64      `json:"alerts_triggered"`
	CheckErrors     int64      `json:"check_errors"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
}

// Config holds monitoring configuration.
type Config struct {
	LookbackWindow time.Duration `json:"lookback_window"`
}

// AlertEngine implements the Engine interface
type AlertEngine struct {
	storage storage.Storage
	logger  *logrus.Logger
	config  *Config
	metrics *metrics.Manager
	sinks   []AlertSink

	mu    sync.RWMutex
	stats EngineStats
}

// NewAlertEngine creates a new alert engine
func NewAlertEngine(store storage.Storage, config *Config, metricsManager *metrics.Manager) *AlertEngine {
	if config.LookbackWindow <= 0 {
		config.LookbackWindow = 7 * 24 * time.Hour
	}
	return &AlertEngine{
		storage: store,
		logger:  utils.GetLogger(),
		config:  config,
		metrics: metricsManager,
	}
}

// AddSink registers an alert sink. Not safe to call after checks started.
func (e *AlertEngine) AddSink(sink AlertSink) {
	e.sinks = append(e.sinks, sink)
}

// CheckBusiness runs every active detector for one business, persists the
// resulting alerts and fans them out to the registered sinks. Identical
// conditions on consecutive checks raise duplicate alerts; consumers that
// need deduplication must handle it themselves.
func (e *AlertEngine) CheckBusiness(ctx context.Context, businessID string) (*CheckResult, error) {
	started := time.Now()

	business, err := e.storage.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Business not found: %s", businessID), "")
	}

	configs, err := e.ensureConfigurations(ctx, businessID)
	if err != nil {
		return nil, err
	}

	window := models.WindowEnding(time.Now().UTC(), e.config.LookbackWindow)
	result := &CheckResult{BusinessID: businessID}

	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		detector := detectorFor(cfg.AlertType)
		if detector == nil {
			continue
		}
		result.Checked = append(result.Checked, string(cfg.AlertType))

		drafts, err := detector(ctx, e.storage, businessID, window, cfg.Thresholds)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"business_id": businessID,
				"alert_type":  cfg.AlertType,
			}).Warn("Detector failed")
			continue
		}

		for _, draft := range drafts {
			alert, err := e.persistAlert(ctx, businessID, draft)
			if err != nil {
				e.logger.WithError(err).WithField("business_id", businessID).Error("Failed to persist alert")
				continue
			}
			result.Alerts = append(result.Alerts, alert)
			e.fanOut(ctx, business, alert)
		}
	}

	result.Duration = time.Since(started)

	e.mu.Lock()
	e.stats.AlertsTriggered += int64(len(result.Alerts))
	e.mu.Unlock()

	if len(result.Alerts) > 0 {
		e.logger.WithFields(logrus.Fields{
			"business_id": businessID,
			"alerts":      len(result.Alerts),
			"duration":    result.Duration,
		}).Info("Monitoring check raised alerts")
	}
	return result, nil
}

// CheckAll checks every active business.
func (e *AlertEngine) CheckAll(ctx context.Context) (*CheckSummary, error) {
	started := time.Now()
	summary := &CheckSummary{StartedAt: started.UTC()}

	businesses, err := e.storage.GetActiveBusinesses(ctx, 0)
	if err != nil {
		e.recordPass("error", time.Since(started))
		return nil, err
	}
	summary.Businesses = len(businesses)

	for _, business := range businesses {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		result, err := e.CheckBusiness(ctx, business.ID)
		if err != nil {
			summary.Errors++
			e.logger.WithError(err).WithField("business_id", business.ID).Error("Business check failed")
			continue
		}
		summary.Alerts += len(result.Alerts)
	}

	summary.Duration = time.Since(started)

	status := "ok"
	if summary.Errors > 0 {
		status = "partial"
	}
	e.recordPass(status, summary.Duration)

	e.logger.WithFields(logrus.Fields{
		"businesses": summary.Businesses,
		"alerts":     summary.Alerts,
		"errors":     summary.Errors,
		"duration":   summary.Duration,
	}).Info("Monitoring pass completed")
	return summary, nil
}

func (e *AlertEngine) recordPass(status string, duration time.Duration) {
	e.mu.Lock()
	e.stats.CheckPasses++
	if status == "error" || status == "partial" {
		e.stats.CheckErrors++
	}
	now := time.Now().UTC()
	e.stats.LastCheck = &now
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.GetPrometheusMetrics().RecordAlertCheck(status, duration)
	}
}

// ensureConfigurations loads the business's alert configurations, seeding
// the defaults on first contact.
func (e *AlertEngine) ensureConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error) {
	configs, err := e.storage.GetAlertConfigurations(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if len(configs) > 0 {
		return configs, nil
	}

	configs = models.DefaultAlertConfigurations(businessID)
	for _, cfg := range configs {
		id, err := utils.GenerateID()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate configuration ID", err.Error())
		}
		cfg.ID = id
		if err := e.storage.SaveAlertConfiguration(ctx, cfg); err != nil {
			return nil, err
		}
	}

	e.logger.WithField("business_id", businessID).Info("Seeded default alert configurations")
	return configs, nil
}

func (e *AlertEngine) persistAlert(ctx context.Context, businessID string, draft *alertDraft) (*models.Alert, error) {
	id, err := utils.GenerateID()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate alert ID", err.Error())
	}

	alert := &models.Alert{
		ID:               id,
		BusinessID:       businessID,
		Type:             draft.Type,
		Severity:         draft.severity(),
		Title:            draft.Title,
		Message:          draft.Message,
		TriggerData:      draft.TriggerData,
		CurrentValue:     draft.CurrentValue,
		PreviousValue:    draft.PreviousValue,
		PercentageChange: draft.PercentageChange,
		Status:           models.AlertStatusActive,
		CreatedAt:        time.Now().UTC(),
	}
	if err := e.storage.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.GetPrometheusMetrics().RecordAlertTriggered(string(alert.Type), string(alert.Severity))
	}
	return alert, nil
}

func (e *AlertEngine) fanOut(ctx context.Context, business *models.Business, alert *models.Alert) {
	for _, sink := range e.sinks {
		if err := sink.HandleAlert(ctx, business, alert); err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"alert_id":   alert.ID,
				"alert_type": alert.Type,
			}).Warn("Alert sink failed")
		}
	}
}

// AcknowledgeAlert marks an active alert acknowledged.
func (e *AlertEngine) AcknowledgeAlert(ctx context.Context, alertID, businessID string) (*models.Alert, error) {
	return e.transitionAlert(ctx, alertID, businessID, models.AlertStatusAcknowledged)
}

// ResolveAlert marks an alert resolved. Acknowledgement is not required
// first; active alerts may be resolved directly.
func (e *AlertEngine) ResolveAlert(ctx context.Context, alertID, businessID string) (*models.Alert, error) {
	return e.transitionAlert(ctx, alertID, businessID, models.AlertStatusResolved)
}

func (e *AlertEngine) transitionAlert(ctx context.Context, alertID, businessID string, target models.AlertStatus) (*models.Alert, error) {
	alert, err := e.storage.GetAlert(ctx, alertID, businessID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Alert not found: %s", alertID), "")
	}

	switch target {
	case models.AlertStatusAcknowledged:
		if alert.Status != models.AlertStatusActive {
			return nil, utils.NewAppError(utils.ErrCodeValidation,
				fmt.Sprintf("Cannot acknowledge %s alert", alert.Status), alertID)
		}
	case models.AlertStatusResolved:
		if alert.Status == models.AlertStatusResolved {
			return nil, utils.NewAppError(utils.ErrCodeValidation,
				"Alert is already resolved", alertID)
		}
	}

	at := time.Now().UTC()
	if err := e.storage.UpdateAlertStatus(ctx, alertID, businessID, target, at); err != nil {
		return nil, err
	}

	alert.Status = target
	switch target {
	case models.AlertStatusAcknowledged:
		alert.AcknowledgedAt = &at
	case models.AlertStatusResolved:
		alert.ResolvedAt = &at
	}
	return alert, nil
}

// ListAlerts returns alerts matching the filter.
func (e *AlertEngine) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	return e.storage.GetAlerts(ctx, filter)
}

// ConfigureAlert upserts a per-business detector configuration.
func (e *AlertEngine) ConfigureAlert(ctx context.Context, cfg *models.AlertConfiguration) (*models.AlertConfiguration, error) {
	if cfg == nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Alert configuration is required", "")
	}
	if cfg.BusinessID == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "business_id is required", "")
	}
	if !models.IsValidAlertType(cfg.AlertType) {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Unknown alert type: %s", cfg.AlertType), "")
	}
	if len(cfg.Thresholds) == 0 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "At least one threshold is required", "")
	}
	if cfg.CheckFrequency != "" && !models.IsValidFrequency(cfg.CheckFrequency) {
		return nil, utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("Unknown check frequency: %s", cfg.CheckFrequency), "")
	}

	existing, err := e.storage.GetAlertConfiguration(ctx, cfg.BusinessID, cfg.AlertType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing != nil {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	} else {
		id, err := utils.GenerateID()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate configuration ID", err.Error())
		}
		cfg.ID = id
		cfg.CreatedAt = now
	}
	if cfg.CheckFrequency == "" {
		cfg.CheckFrequency = models.FrequencyDaily
	}
	cfg.UpdatedAt = now

	if err := e.storage.SaveAlertConfiguration(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigurations returns all configurations for a business.
func (e *AlertEngine) GetConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error) {
	return e.storage.GetAlertConfigurations(ctx, businessID)
}

// GetStats returns a snapshot of engine statistics.
func (e *AlertEngine) GetStats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := e.stats
	return &stats
}
