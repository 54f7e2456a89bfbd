// File: internal/models/channel.go
package models

import (
	"time"
)

// ChannelType identifies the delivery mechanism of a notification channel.
type ChannelType string

const (
	ChannelTypeChatHook   ChannelType = "chat_hook"
	ChannelTypeEmail      ChannelType = "email"
	ChannelTypeCustomHTTP ChannelType = "custom_http"
)

// ChannelSettings carries the type-specific delivery settings. Only the
// fields required by the channel's type are validated at write time.
type ChannelSettings struct {
	// chat_hook and custom_http
	URL string `json:"url,omitempty" validate:"omitempty,url"`
	// custom_http extras
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// email
	SMTPHost    string   `json:"smtp_host,omitempty"`
	SMTPPort    int      `json:"smtp_port,omitempty"`
	Username    string   `json:"username,omitempty"`
	Password    string   `json:"password,omitempty"`
	FromAddress string   `json:"from_address,omitempty" validate:"omitempty,email"`
	Recipients  []string `json:"recipients,omitempty" validate:"dive,email"`
	UseTLS      bool     `json:"use_tls,omitempty"`
}

// ChannelFilters optionally narrow which events a channel receives.
// Empty allowlists impose no restriction.
type ChannelFilters struct {
	SeverityLevels []AlertSeverity `json:"severity_levels,omitempty"`
	AlertTypes     []AlertType     `json:"alert_types,omitempty"`
}

// AllowsSeverity reports whether the severity allowlist admits s.
func (f *ChannelFilters) AllowsSeverity(s AlertSeverity) bool {
	if f == nil || len(f.SeverityLevels) == 0 {
		return true
	}
	for _, allowed := range f.SeverityLevels {
		if allowed == s {
			return true
		}
	}
	return false
}

// AllowsAlertType reports whether the alert-type allowlist admits t.
func (f *ChannelFilters) AllowsAlertType(t AlertType) bool {
	if f == nil || len(f.AlertTypes) == 0 {
		return true
	}
	for _, allowed := range f.AlertTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// ChannelConfiguration is a business-level rule describing where and how to
// deliver alerts and events. Name is unique per business; settings are
// validated when the configuration is written, not when it is used.
type ChannelConfiguration struct {
	ID            string          `json:"id" db:"id"`
	BusinessID    string          `json:"business_id" db:"business_id" validate:"required"`
	Name          string          `json:"name" db:"name" validate:"required"`
	Type          ChannelType     `json:"channel_type" db:"channel_type" validate:"required"`
	Settings      ChannelSettings `json:"settings" db:"settings"`
	TriggerEvents []string        `json:"trigger_events" db:"trigger_events" validate:"required,min=1"`
	Filters       *ChannelFilters `json:"filters,omitempty" db:"filters"`
	Active        bool            `json:"active" db:"active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// WantsEvent reports whether the channel subscribes to the given event type.
func (c *ChannelConfiguration) WantsEvent(eventType string) bool {
	for _, e := range c.TriggerEvents {
		if e == eventType {
			return true
		}
	}
	return false
}

// NotificationEvent is the unit handed to the dispatcher. Alert-derived
// events carry the alert type as Type and the alert's severity.
type NotificationEvent struct {
	Type         string                 `json:"event_type"`
	Severity     AlertSeverity          `json:"severity"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	BusinessID   string                 `json:"business_id"`
	BusinessName string                 `json:"business_name,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	ActionURL    string                 `json:"action_url,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// EventFromAlert converts a freshly created alert into a dispatchable event.
func EventFromAlert(alert *Alert, businessName string) *NotificationEvent {
	return &NotificationEvent{
		Type:         string(alert.Type),
		Severity:     alert.Severity,
		Title:        alert.Title,
		Message:      alert.Message,
		BusinessID:   alert.BusinessID,
		BusinessName: businessName,
		Data:         alert.TriggerData,
		Timestamp:    alert.CreatedAt,
	}
}

// DeliveryResult records the outcome of one outbound call to one channel.
type DeliveryResult struct {
	ChannelID   string        `json:"channel_id"`
	ChannelName string        `json:"channel_name"`
	ChannelType ChannelType   `json:"channel_type"`
	Success     bool          `json:"success"`
	StatusCode  int           `json:"status_code,omitempty"`
	Error       *string       `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	AttemptedAt time.Time     `json:"attempted_at"`
}

// SendResult aggregates per-channel outcomes for one dispatched event.
// Individual failures are recorded here, never escalated to the alert.
type SendResult struct {
	EventType  string           `json:"event_type"`
	BusinessID string           `json:"business_id"`
	Matched    int              `json:"matched_channels"`
	Delivered  int              `json:"delivered"`
	Failed     int              `json:"failed"`
	Results    []DeliveryResult `json:"results"`
}
