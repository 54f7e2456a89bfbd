// File: internal/models/alert.go
package models

import (
	"time"
)

// AlertType identifies the detector that raised an alert.
type AlertType string

const (
	AlertTypeRankingDrop           AlertType = "ranking_drop"
	AlertTypeRankingImprovement    AlertType = "ranking_improvement"
	AlertTypeTrafficDrop           AlertType = "traffic_drop"
	AlertTypeTrafficSpike          AlertType = "traffic_spike"
	AlertTypeTechnicalScoreDrop    AlertType = "technical_score_drop"
	AlertTypeTechnicalIssuesRise   AlertType = "technical_issues_increase"
	AlertTypeCompetitorOpportunity AlertType = "competitor_opportunity"
)

// AllAlertTypes returns every known alert type.
func AllAlertTypes() []AlertType {
	return []AlertType{
		AlertTypeRankingDrop,
		AlertTypeRankingImprovement,
		AlertTypeTrafficDrop,
		AlertTypeTrafficSpike,
		AlertTypeTechnicalScoreDrop,
		AlertTypeTechnicalIssuesRise,
		AlertTypeCompetitorOpportunity,
	}
}

// IsValidAlertType reports whether t is a member of the known alert type set.
func IsValidAlertType(t AlertType) bool {
	for _, known := range AllAlertTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// AlertSeverity bands an alert by magnitude.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Rank returns an ordering value for severity comparison.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s AlertSeverity) AtLeast(min AlertSeverity) bool {
	return s.Rank() >= min.Rank()
}

// SeverityForScore bands a raw detector score: below 7 is low, 7 to 9 is
// medium, 10 and above is high.
func SeverityForScore(score float64) AlertSeverity {
	switch {
	case score >= 10:
		return SeverityHigh
	case score >= 7:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertStatus is the user-driven alert lifecycle state.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is a materialized detection of a threshold breach. Alerts are
// created only by the monitoring engine; status is advanced only by user
// action; trigger data is immutable once written.
type Alert struct {
	ID               string                 `json:"id" db:"id"`
	BusinessID       string                 `json:"business_id" db:"business_id"`
	Type             AlertType              `json:"alert_type" db:"alert_type"`
	Severity         AlertSeverity          `json:"severity" db:"severity"`
	Title            string                 `json:"title" db:"title"`
	Message          string                 `json:"message" db:"message"`
	TriggerData      map[string]interface{} `json:"trigger_data,omitempty" db:"trigger_data"`
	CurrentValue     float64                `json:"current_value" db:"current_value"`
	PreviousValue    *float64               `json:"previous_value,omitempty" db:"previous_value"`
	PercentageChange *float64               `json:"percentage_change,omitempty" db:"percentage_change"`
	Status           AlertStatus            `json:"status" db:"status"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	AcknowledgedAt   *time.Time             `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt       *time.Time             `json:"resolved_at,omitempty" db:"resolved_at"`
}

// AlertFilter selects alerts for listing.
type AlertFilter struct {
	BusinessID *string        `json:"business_id,omitempty"`
	Type       *AlertType     `json:"alert_type,omitempty"`
	Severity   *AlertSeverity `json:"severity,omitempty"`
	Status     *AlertStatus   `json:"status,omitempty"`
	Since      *time.Time     `json:"since,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// AlertConfiguration holds per-business detector thresholds and routing.
// Unique per (business_id, alert_type); seeded with defaults on the first
// monitoring check when absent.
type AlertConfiguration struct {
	ID             string             `json:"id" db:"id"`
	BusinessID     string             `json:"business_id" db:"business_id"`
	AlertType      AlertType          `json:"alert_type" db:"alert_type"`
	Thresholds     map[string]float64 `json:"thresholds" db:"thresholds"`
	CheckFrequency Frequency          `json:"check_frequency" db:"check_frequency"`
	Channels       []string           `json:"channels,omitempty" db:"channels"`
	Active         bool               `json:"active" db:"active"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// Threshold key names used inside AlertConfiguration.Thresholds.
const (
	ThresholdPositionDrop = "position_drop" // ranking positions lost
	ThresholdTrafficDrop  = "traffic_drop"  // percent, negative
	ThresholdTrafficSpike = "traffic_spike" // percent, positive
	ThresholdScoreDrop    = "score_drop"    // audit score delta, negative
	ThresholdGapCount     = "gap_count"     // low-difficulty competitor gaps
)

// Seeded defaults applied when a business has no stored configuration yet.
const (
	DefaultPositionDropThreshold = 5.0
	DefaultTrafficDropThreshold  = -30.0
	DefaultTrafficSpikeThreshold = 50.0
	DefaultScoreDropThreshold    = -10.0
	DefaultGapCountThreshold     = 3.0
)

// DefaultAlertConfigurations returns the seeded configuration set for a
// business that has never been checked before.
func DefaultAlertConfigurations(businessID string) []*AlertConfiguration {
	now := time.Now()
	build := func(alertType AlertType, thresholds map[string]float64) *AlertConfiguration {
		return &AlertConfiguration{
			BusinessID:     businessID,
			AlertType:      alertType,
			Thresholds:     thresholds,
			CheckFrequency: FrequencyDaily,
			Active:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	return []*AlertConfiguration{
		build(AlertTypeRankingDrop, map[string]float64{ThresholdPositionDrop: DefaultPositionDropThreshold}),
		build(AlertTypeTrafficDrop, map[string]float64{
			ThresholdTrafficDrop:  DefaultTrafficDropThreshold,
			ThresholdTrafficSpike: DefaultTrafficSpikeThreshold,
		}),
		build(AlertTypeTechnicalScoreDrop, map[string]float64{ThresholdScoreDrop: DefaultScoreDropThreshold}),
		build(AlertTypeCompetitorOpportunity, map[string]float64{ThresholdGapCount: DefaultGapCountThreshold}),
	}
}
