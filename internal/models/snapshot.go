// File: internal/models/snapshot.go
package models

import (
	"time"
)

// Business is the owning record for tasks, alerts and channels. Business
// management itself lives outside this core; the orchestrator only needs
// existence checks and a display name for notifications.
type Business struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RankingSnapshot is one observed search position for a tracked keyword.
type RankingSnapshot struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	Keyword    string    `json:"keyword" db:"keyword"`
	Position   int       `json:"position" db:"position"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`
}

// TrafficSnapshot is one observed visit count for a tracked resource.
type TrafficSnapshot struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	Resource   string    `json:"resource" db:"resource"`
	Visits     int64     `json:"visits" db:"visits"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`
}

// AuditSnapshot is one technical audit result for a business.
type AuditSnapshot struct {
	ID             string    `json:"id" db:"id"`
	BusinessID     string    `json:"business_id" db:"business_id"`
	Score          float64   `json:"score" db:"score"`
	CriticalIssues int       `json:"critical_issues" db:"critical_issues"`
	CapturedAt     time.Time `json:"captured_at" db:"captured_at"`
}

// CompetitorSnapshot summarizes the latest competitor gap analysis.
type CompetitorSnapshot struct {
	ID                string    `json:"id" db:"id"`
	BusinessID        string    `json:"business_id" db:"business_id"`
	LowDifficultyGaps int       `json:"low_difficulty_gaps" db:"low_difficulty_gaps"`
	TotalGaps         int       `json:"total_gaps" db:"total_gaps"`
	CapturedAt        time.Time `json:"captured_at" db:"captured_at"`
}

// SnapshotWindow bounds snapshot queries to a rolling lookback period.
type SnapshotWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// WindowEnding returns a lookback window of the given length ending at to.
func WindowEnding(to time.Time, lookback time.Duration) SnapshotWindow {
	return SnapshotWindow{From: to.Add(-lookback), To: to}
}
