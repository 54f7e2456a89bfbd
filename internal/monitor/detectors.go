// File: internal/monitor/detectors.go
package monitor

import (
	"context"
	"fmt"
	"math"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
)

// alertDraft is a detector finding before persistence. Score drives the
// severity band unless the detector sets Severity explicitly.
type alertDraft struct {
	Type             models.AlertType
	Score            float64
	Severity         models.AlertSeverity
	Title            string
	Message          string
	TriggerData      map[string]interface{}
	CurrentValue     float64
	PreviousValue    *float64
	PercentageChange *float64
}

func (d *alertDraft) severity() models.AlertSeverity {
	if d.Severity != "" {
		return d.Severity
	}
	return models.SeverityForScore(d.Score)
}

type detectorFunc func(ctx context.Context, store storage.Storage, businessID string, window models.SnapshotWindow, thresholds map[string]float64) ([]*alertDraft, error)

// detectorFor maps a configured alert type to its detector. Improvement and
// spike alerts are produced by the drop detectors over the same data, so
// only the primary types resolve to a detector.
func detectorFor(alertType models.AlertType) detectorFunc {
	switch alertType {
	case models.AlertTypeRankingDrop:
		return detectRankingChanges
	case models.AlertTypeTrafficDrop:
		return detectTrafficChanges
	case models.AlertTypeTechnicalScoreDrop:
		return detectAuditChanges
	case models.AlertTypeCompetitorOpportunity:
		return detectCompetitorOpportunities
	default:
		return nil
	}
}

// Ranking improvements use a fixed threshold rather than a configurable one.
const improvementThreshold = 5

func threshold(thresholds map[string]float64, key string, fallback float64) float64 {
	if v, ok := thresholds[key]; ok {
		return v
	}
	return fallback
}

// detectRankingChanges compares the latest position per keyword against the
// previous observation. Positions grow downward: a positive delta is a drop.
func detectRankingChanges(ctx context.Context, store storage.Storage, businessID string, window models.SnapshotWindow, thresholds map[string]float64) ([]*alertDraft, error) {
	snapshots, err := store.GetRankingSnapshots(ctx, businessID, window)
	if err != nil {
		return nil, err
	}

	dropThreshold := threshold(thresholds, models.ThresholdPositionDrop, models.DefaultPositionDropThreshold)

	// snapshots arrive ordered by keyword then capture time
	byKeyword := make(map[string][]*models.RankingSnapshot)
	for _, snap := range snapshots {
		byKeyword[snap.Keyword] = append(byKeyword[snap.Keyword], snap)
	}

	var drafts []*alertDraft
	for keyword, series := range byKeyword {
		if len(series) < 2 {
			continue
		}
		current := series[len(series)-1]
		previous := series[len(series)-2]
		delta := current.Position - previous.Position
		prevValue := float64(previous.Position)

		if float64(delta) >= dropThreshold {
			drafts = append(drafts, &alertDraft{
				Type:  models.AlertTypeRankingDrop,
				Score: float64(delta),
				Title: fmt.Sprintf("Ranking drop for %q", keyword),
				Message: fmt.Sprintf("%q fell from position %d to %d",
					keyword, previous.Position, current.Position),
				TriggerData: map[string]interface{}{
					"keyword":           keyword,
					"positions_dropped": delta,
				},
				CurrentValue:  float64(current.Position),
				PreviousValue: &prevValue,
			})
		} else if delta <= -improvementThreshold {
			// improvements are informational regardless of magnitude
			drafts = append(drafts, &alertDraft{
				Type:  models.AlertTypeRankingImprovement,
				Score: 0,
				Title: fmt.Sprintf("Ranking improvement for %q", keyword),
				Message: fmt.Sprintf("%q climbed from position %d to %d",
					keyword, previous.Position, current.Position),
				TriggerData: map[string]interface{}{
					"keyword":          keyword,
					"positions_gained": -delta,
				},
				CurrentValue:  float64(current.Position),
				PreviousValue: &prevValue,
			})
		}
	}
	return drafts, nil
}

// detectTrafficChanges compares the latest visit count per tracked resource
// against the previous observation for that resource.
func detectTrafficChanges(ctx context.Context, store storage.Storage, businessID string, window models.SnapshotWindow, thresholds map[string]float64) ([]*alertDraft, error) {
	snapshots, err := store.GetTrafficSnapshots(ctx, businessID, window)
	if err != nil {
		return nil, err
	}

	dropThreshold := threshold(thresholds, models.ThresholdTrafficDrop, models.DefaultTrafficDropThreshold)
	spikeThreshold := threshold(thresholds, models.ThresholdTrafficSpike, models.DefaultTrafficSpikeThreshold)

	// snapshots arrive ordered by resource then capture time
	byResource := make(map[string][]*models.TrafficSnapshot)
	for _, snap := range snapshots {
		byResource[snap.Resource] = append(byResource[snap.Resource], snap)
	}

	var drafts []*alertDraft
	for resource, series := range byResource {
		if len(series) < 2 {
			continue
		}
		current := series[len(series)-1]
		previous := series[len(series)-2]
		if previous.Visits == 0 {
			continue
		}

		pctChange := (float64(current.Visits) - float64(previous.Visits)) / float64(previous.Visits) * 100
		prevValue := float64(previous.Visits)

		// a 5 percent swing contributes one severity point
		score := math.Abs(pctChange) / 5

		if pctChange <= dropThreshold {
			// A loss of half the traffic or more is always critical.
			var severity models.AlertSeverity
			if pctChange <= -50 {
				severity = models.SeverityCritical
			}
			drafts = append(drafts, &alertDraft{
				Type:     models.AlertTypeTrafficDrop,
				Score:    score,
				Severity: severity,
				Title:    fmt.Sprintf("Traffic drop for %s", resource),
				Message: fmt.Sprintf("Visits to %s fell %.1f%% (%d to %d)",
					resource, math.Abs(pctChange), previous.Visits, current.Visits),
				TriggerData: map[string]interface{}{
					"resource":        resource,
					"previous_visits": previous.Visits,
					"current_visits":  current.Visits,
				},
				CurrentValue:     float64(current.Visits),
				PreviousValue:    &prevValue,
				PercentageChange: &pctChange,
			})
		} else if pctChange >= spikeThreshold {
			// spikes are informational regardless of magnitude
			drafts = append(drafts, &alertDraft{
				Type:  models.AlertTypeTrafficSpike,
				Score: 0,
				Title: fmt.Sprintf("Traffic spike for %s", resource),
				Message: fmt.Sprintf("Visits to %s rose %.1f%% (%d to %d)",
					resource, pctChange, previous.Visits, current.Visits),
				TriggerData: map[string]interface{}{
					"resource":        resource,
					"previous_visits": previous.Visits,
					"current_visits":  current.Visits,
				},
				CurrentValue:     float64(current.Visits),
				PreviousValue:    &prevValue,
				PercentageChange: &pctChange,
			})
		}
	}
	return drafts, nil
}

// detectAuditChanges compares the two most recent audit snapshots for score
// regressions and critical issue growth.
func detectAuditChanges(ctx context.Context, store storage.Storage, businessID string, window models.SnapshotWindow, thresholds map[string]float64) ([]*alertDraft, error) {
	snapshots, err := store.GetAuditSnapshots(ctx, businessID, window)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 2 {
		return nil, nil
	}

	current := snapshots[len(snapshots)-1]
	previous := snapshots[len(snapshots)-2]

	scoreDropThreshold := threshold(thresholds, models.ThresholdScoreDrop, models.DefaultScoreDropThreshold)

	var drafts []*alertDraft
	scoreDelta := current.Score - previous.Score
	if scoreDelta <= scoreDropThreshold {
		prevScore := previous.Score
		pct := 0.0
		if previous.Score != 0 {
			pct = scoreDelta / previous.Score * 100
		}
		drafts = append(drafts, &alertDraft{
			Type:  models.AlertTypeTechnicalScoreDrop,
			Score: math.Abs(scoreDelta),
			Title: "Technical score drop",
			Message: fmt.Sprintf("Audit score fell from %.1f to %.1f",
				previous.Score, current.Score),
			TriggerData: map[string]interface{}{
				"score_delta": scoreDelta,
			},
			CurrentValue:     current.Score,
			PreviousValue:    &prevScore,
			PercentageChange: &pct,
		})
	}

	issueDelta := current.CriticalIssues - previous.CriticalIssues
	if issueDelta >= 1 {
		prevIssues := float64(previous.CriticalIssues)
		drafts = append(drafts, &alertDraft{
			Type:  models.AlertTypeTechnicalIssuesRise,
			Score: float64(issueDelta) * 3,
			Title: "Critical issues increasing",
			Message: fmt.Sprintf("Critical issues rose from %d to %d",
				previous.CriticalIssues, current.CriticalIssues),
			TriggerData: map[string]interface{}{
				"issue_delta": issueDelta,
			},
			CurrentValue:  float64(current.CriticalIssues),
			PreviousValue: &prevIssues,
		})
	}
	return drafts, nil
}

// detectCompetitorOpportunities flags businesses whose latest competitor
// scan found enough low-difficulty keyword gaps to act on.
func detectCompetitorOpportunities(ctx context.Context, store storage.Storage, businessID string, window models.SnapshotWindow, thresholds map[string]float64) ([]*alertDraft, error) {
	snapshots, err := store.GetCompetitorSnapshots(ctx, businessID, window)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	gapThreshold := threshold(thresholds, models.ThresholdGapCount, models.DefaultGapCountThreshold)
	current := snapshots[len(snapshots)-1]
	// opportunity only once the gap count exceeds the threshold
	if float64(current.LowDifficultyGaps) <= gapThreshold {
		return nil, nil
	}

	return []*alertDraft{{
		Type:  models.AlertTypeCompetitorOpportunity,
		Score: float64(current.LowDifficultyGaps),
		Title: "Competitor keyword opportunity",
		Message: fmt.Sprintf("%d low-difficulty keyword gaps found (%d total)",
			current.LowDifficultyGaps, current.TotalGaps),
		TriggerData: map[string]interface{}{
			"low_difficulty_gaps": current.LowDifficultyGaps,
			"total_gaps":          current.TotalGaps,
		},
		CurrentValue: float64(current.LowDifficultyGaps),
	}}, nil
}
