// File: internal/notification/notification.go
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Notifier defines the notification dispatch interface
type Notifier interface {
	// Dispatch
	DispatchEvent(ctx context.Context, event *models.NotificationEvent) (*models.SendResult, error)

	// Channel management
	ConfigureChannel(ctx context.Context, cfg *models.ChannelConfiguration) (*models.ChannelConfiguration, error)
	TestChannel(ctx context.Context, channelID, businessID string) (*models.DeliveryResult, error)
	ListChannels(ctx context.Context, businessID string, activeOnly bool) ([]*models.ChannelConfiguration, error)
	DeleteChannel(ctx context.Context, channelID, businessID string) error

	// Statistics
	GetStats() *DispatcherStats
}

// DispatcherStats tracks dispatch activity since startup.
type DispatcherStats struct {
	EventsDispatched int64      `json:"events_dispatched"`
	Delivered        int64      `json:"delivered"`
	Failed           int64      `json:"failed"`
	LastDispatch     *time.Time `json:"last_dispatch,omitempty"`
}

// Config holds dispatcher configuration.
type Config struct {
	DeliveryTimeout time.Duration `json:"delivery_timeout"`
	RatePerSecond   float64       `json:"rate_per_second"`
	RateBurst       int           `json:"rate_burst"`
	DashboardURL    string        `json:"dashboard_url"`
}

// Dispatcher implements the Notifier interface. Deliveries are fire and
// forget: a failed delivery is recorded and never retried, and one channel's
// failure does not affect the others.
type Dispatcher struct {
	storage storage.Storage
	logger  *logrus.Logger
	config  *Config
	metrics *metrics.Manager
	limiter *rate.Limiter

	webhook *WebhookSender
	email   *EmailSender

	mu    sync.RWMutex
	stats DispatcherStats
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(store storage.Storage, config *Config, metricsManager *metrics.Manager) *Dispatcher {
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = 8 * time.Second
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 10
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 20
	}

	return &Dispatcher{
		storage: store,
		logger:  utils.GetLogger(),
		config:  config,
		metrics: metricsManager,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RateBurst),
		webhook: NewWebhookSender(config.DeliveryTimeout),
		email:   NewEmailSender(config.DeliveryTimeout),
	}
}

// HandleAlert converts an alert into an event and dispatches it. Delivery
// failures never propagate back to the caller.
func (d *Dispatcher) HandleAlert(ctx context.Context, business *models.Business, alert *models.Alert) error {
	event := models.EventFromAlert(alert, business.Name)
	if d.config.DashboardURL != "" {
		event.ActionURL = fmt.Sprintf("%s/businesses/%s/alerts/%s",
			d.config.DashboardURL, alert.BusinessID, alert.ID)
	}

	result, err := d.DispatchEvent(ctx, event)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		d.logger.WithFields(logrus.Fields{
			"alert_id":  alert.ID,
			"delivered": result.Delivered,
			"failed":    result.Failed,
		}).Warn("Some alert deliveries failed")
	}
	return nil
}

// DispatchEvent fans an event out to every matching active channel in
// parallel and reports per-channel outcomes.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event *models.NotificationEvent) (*models.SendResult, error) {
	if event == nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Notification event is required", "")
	}
	if event.BusinessID == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Event business_id is required", "")
	}

	channels, err := d.storage.GetChannels(ctx, event.BusinessID, true)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.ChannelConfiguration, 0, len(channels))
	for _, channel := range channels {
		if !channel.WantsEvent(event.Type) {
			continue
		}
		if !channel.Filters.AllowsSeverity(event.Severity) {
			continue
		}
		if !channel.Filters.AllowsAlertType(models.AlertType(event.Type)) {
			continue
		}
		matched = append(matched, channel)
	}

	result := &models.SendResult{
		EventType:  event.Type,
		BusinessID: event.BusinessID,
		Matched:    len(matched),
	}
	if len(matched) == 0 {
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, channel := range matched {
		wg.Add(1)
		go func(channel *models.ChannelConfiguration) {
			defer wg.Done()
			delivery := d.deliver(ctx, channel, event)
			mu.Lock()
			result.Results = append(result.Results, *delivery)
			if delivery.Success {
				result.Delivered++
			} else {
				result.Failed++
			}
			mu.Unlock()
		}(channel)
	}
	wg.Wait()

	d.mu.Lock()
	d.stats.EventsDispatched++
	d.stats.Delivered += int64(result.Delivered)
	d.stats.Failed += int64(result.Failed)
	now := time.Now().UTC()
	d.stats.LastDispatch = &now
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"event_type":  event.Type,
		"business_id": event.BusinessID,
		"matched":     result.Matched,
		"delivered":   result.Delivered,
		"failed":      result.Failed,
	}).Info("Event dispatched")

	return result, nil
}

// deliver performs one outbound call with the shared rate limit and a per
// delivery timeout. There is exactly one attempt per channel per event.
func (d *Dispatcher) deliver(ctx context.Context, channel *models.ChannelConfiguration, event *models.NotificationEvent) *models.DeliveryResult {
	result := &models.DeliveryResult{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		ChannelType: channel.Type,
		AttemptedAt: time.Now().UTC(),
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.recordFailure(result, channel, event, err, "rate_limit")
		return result
	}

	deliveryCtx, cancel := context.WithTimeout(ctx, d.config.DeliveryTimeout)
	defer cancel()

	started := time.Now()
	var statusCode int
	var err error
	switch channel.Type {
	case models.ChannelTypeChatHook:
		statusCode, err = d.webhook.SendChatHook(deliveryCtx, &channel.Settings, event)
	case models.ChannelTypeCustomHTTP:
		statusCode, err = d.webhook.SendCustomHTTP(deliveryCtx, &channel.Settings, event)
	case models.ChannelTypeEmail:
		err = d.email.Send(deliveryCtx, &channel.Settings, event)
	default:
		err = utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Unknown channel type: %s", channel.Type), channel.ID)
	}
	result.Duration = time.Since(started)
	result.StatusCode = statusCode

	if err != nil {
		d.recordFailure(result, channel, event, err, "delivery")
		return result
	}

	result.Success = true
	if d.metrics != nil {
		d.metrics.GetPrometheusMetrics().RecordNotificationSent(
			string(channel.Type), event.Type, result.Duration)
	}
	return result
}

func (d *Dispatcher) recordFailure(result *models.DeliveryResult, channel *models.ChannelConfiguration, event *models.NotificationEvent, err error, errorType string) {
	errText := err.Error()
	result.Error = &errText

	d.logger.WithError(err).WithFields(logrus.Fields{
		"channel_id":   channel.ID,
		"channel_type": channel.Type,
		"event_type":   event.Type,
	}).Warn("Notification delivery failed")

	if d.metrics != nil {
		d.metrics.GetPrometheusMetrics().RecordNotificationFailure(
			string(channel.Type), event.Type, errorType)
	}
}

// ConfigureChannel validates and upserts a channel configuration. The name
// is the upsert key within a business.
func (d *Dispatcher) ConfigureChannel(ctx context.Context, cfg *models.ChannelConfiguration) (*models.ChannelConfiguration, error) {
	if err := ValidateChannel(cfg); err != nil {
		return nil, err
	}

	existing, err := d.storage.GetChannelByName(ctx, cfg.BusinessID, cfg.Name)
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
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate channel ID", err.Error())
		}
		cfg.ID = id
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := d.storage.SaveChannel(ctx, cfg); err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"channel_id":   cfg.ID,
		"business_id":  cfg.BusinessID,
		"channel_type": cfg.Type,
	}).Info("Channel configured")
	return cfg, nil
}

// TestChannel sends a synthetic event through one channel.
func (d *Dispatcher) TestChannel(ctx context.Context, channelID, businessID string) (*models.DeliveryResult, error) {
	channel, err := d.storage.GetChannel(ctx, channelID, businessID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Channel not found: %s", channelID), "")
	}

	event := &models.NotificationEvent{
		Type:       "channel_test",
		Severity:   models.SeverityLow,
		Title:      "Test notification",
		Message:    fmt.Sprintf("Test delivery for channel %q", channel.Name),
		BusinessID: businessID,
		Timestamp:  time.Now().UTC(),
	}
	return d.deliver(ctx, channel, event), nil
}

// ListChannels returns a business's channel configurations.
func (d *Dispatcher) ListChannels(ctx context.Context, businessID string, activeOnly bool) ([]*models.ChannelConfiguration, error) {
	return d.storage.GetChannels(ctx, businessID, activeOnly)
}

// DeleteChannel removes a channel configuration.
func (d *Dispatcher) DeleteChannel(ctx context.Context, channelID, businessID string) error {
	return d.storage.DeleteChannel(ctx, channelID, businessID)
}

// GetStats returns a snapshot of dispatcher statistics.
func (d *Dispatcher) GetStats() *DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := d.stats
	return &stats
}
