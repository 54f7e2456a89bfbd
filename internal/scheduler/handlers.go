// File: internal/scheduler/handlers.go
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/cache"
	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Handlers holds the built-in task handlers. Each handler reads snapshot
// history, computes a report, caches it for dashboard reads and returns the
// report as the task result. Handlers are idempotent so at-least-once
// execution is safe.
type Handlers struct {
	storage storage.Storage
	cache   cache.Store
	logger  *logrus.Logger
}

// NewHandlers creates the built-in handler set
func NewHandlers(store storage.Storage, cacheStore cache.Store) *Handlers {
	return &Handlers{
		storage: store,
		cache:   cacheStore,
		logger:  utils.GetLogger(),
	}
}

// RegisterAll binds every built-in handler to its task type.
func (h *Handlers) RegisterAll(registry *Registry) error {
	bindings := map[models.TaskType]HandlerFunc{
		models.TaskTypeRankCheck:      h.RankCheck,
		models.TaskTypeTrafficReport:  h.TrafficReport,
		models.TaskTypeTechnicalAudit: h.TechnicalAudit,
		models.TaskTypeCompetitorScan: h.CompetitorScan,
		models.TaskTypeContentRefresh: h.ContentRefresh,
	}
	for taskType, handler := range bindings {
		if err := registry.Register(taskType, handler); err != nil {
			return err
		}
	}
	return nil
}

const (
	rankingLookback = 7 * 24 * time.Hour
	trafficLookback = 30 * 24 * time.Hour
	auditLookback   = 90 * 24 * time.Hour
	reportTTL       = time.Hour
)

// RankCheck summarizes keyword positions over the last week.
func (h *Handlers) RankCheck(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	if report := h.cachedReport(cache.RankingsKey(task.BusinessID)); report != nil {
		return report, nil
	}

	window := models.WindowEnding(time.Now().UTC(), rankingLookback)
	snapshots, err := h.storage.GetRankingSnapshots(ctx, task.BusinessID, window)
	if err != nil {
		return nil, err
	}

	// keep the latest observation per keyword
	latest := make(map[string]*models.RankingSnapshot)
	for _, snap := range snapshots {
		prev, ok := latest[snap.Keyword]
		if !ok || snap.CapturedAt.After(prev.CapturedAt) {
			latest[snap.Keyword] = snap
		}
	}

	result := map[string]interface{}{
		"keywords_tracked": len(latest),
		"window_from":      window.From,
		"window_to":        window.To,
	}
	if len(latest) == 0 {
		result["no_data"] = true
		return result, nil
	}

	var sum, top10 int
	best := struct {
		keyword  string
		position int
	}{position: int(^uint(0) >> 1)}
	for keyword, snap := range latest {
		sum += snap.Position
		if snap.Position <= 10 {
			top10++
		}
		if snap.Position < best.position {
			best.keyword = keyword
			best.position = snap.Position
		}
	}
	result["average_position"] = float64(sum) / float64(len(latest))
	result["top10_keywords"] = top10
	result["best_keyword"] = best.keyword
	result["best_position"] = best.position

	h.cacheReport(cache.RankingsKey(task.BusinessID), result, cache.TagRankings)
	return result, nil
}

// TrafficReport aggregates visit counts per resource over the last month.
func (h *Handlers) TrafficReport(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	if report := h.cachedReport("traffic:" + task.BusinessID); report != nil {
		return report, nil
	}

	window := models.WindowEnding(time.Now().UTC(), trafficLookback)
	snapshots, err := h.storage.GetTrafficSnapshots(ctx, task.BusinessID, window)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"window_from": window.From,
		"window_to":   window.To,
	}
	if len(snapshots) == 0 {
		result["no_data"] = true
		return result, nil
	}

	var total int64
	perResource := make(map[string]int64)
	for _, snap := range snapshots {
		total += snap.Visits
		perResource[snap.Resource] += snap.Visits
	}

	topResource := ""
	var topVisits int64
	for resource, visits := range perResource {
		if visits > topVisits || (visits == topVisits && resource < topResource) {
			topResource = resource
			topVisits = visits
		}
	}

	result["total_visits"] = total
	result["resources_tracked"] = len(perResource)
	result["top_resource"] = topResource
	result["top_resource_visits"] = topVisits

	h.cacheReport("traffic:"+task.BusinessID, result, cache.TagTraffic)
	return result, nil
}

// TechnicalAudit reports the latest audit score and its trend.
func (h *Handlers) TechnicalAudit(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	if report := h.cachedReport(cache.AuditKey(task.BusinessID)); report != nil {
		return report, nil
	}

	window := models.WindowEnding(time.Now().UTC(), auditLookback)
	snapshots, err := h.storage.GetAuditSnapshots(ctx, task.BusinessID, window)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"window_from": window.From,
		"window_to":   window.To,
	}
	if len(snapshots) == 0 {
		result["no_data"] = true
		return result, nil
	}

	current := snapshots[len(snapshots)-1]
	result["score"] = current.Score
	result["critical_issues"] = current.CriticalIssues
	result["captured_at"] = current.CapturedAt

	if len(snapshots) > 1 {
		previous := snapshots[len(snapshots)-2]
		result["score_change"] = current.Score - previous.Score
		result["issue_change"] = current.CriticalIssues - previous.CriticalIssues
	}

	h.cacheReport(cache.AuditKey(task.BusinessID), result, cache.TagAudits)
	return result, nil
}

// CompetitorScan reports keyword gap opportunities from the latest scan.
func (h *Handlers) CompetitorScan(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	window := models.WindowEnding(time.Now().UTC(), trafficLookback)
	snapshots, err := h.storage.GetCompetitorSnapshots(ctx, task.BusinessID, window)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"window_from": window.From,
		"window_to":   window.To,
	}
	if len(snapshots) == 0 {
		result["no_data"] = true
		return result, nil
	}

	current := snapshots[len(snapshots)-1]
	result["low_difficulty_gaps"] = current.LowDifficultyGaps
	result["total_gaps"] = current.TotalGaps
	result["captured_at"] = current.CapturedAt
	return result, nil
}

// ContentRefresh flags keywords that slipped beyond the first results page
// and returns them as refresh recommendations.
func (h *Handlers) ContentRefresh(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	window := models.WindowEnding(time.Now().UTC(), rankingLookback)
	snapshots, err := h.storage.GetRankingSnapshots(ctx, task.BusinessID, window)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]int)
	for _, snap := range snapshots {
		latest[snap.Keyword] = snap.Position
	}

	var recommendations []string
	for keyword, position := range latest {
		if position > 10 {
			recommendations = append(recommendations, keyword)
		}
	}
	sort.Strings(recommendations)

	result := map[string]interface{}{
		"keywords_reviewed": len(latest),
		"recommendations":   recommendations,
		"window_from":       window.From,
		"window_to":         window.To,
	}
	if len(latest) == 0 {
		result["no_data"] = true
	}
	return result, nil
}

// cachedReport serves a still-live report instead of recomputing it. Under
// at-least-once execution a double-selected report task returns the same
// result without touching storage again.
func (h *Handlers) cachedReport(key string) map[string]interface{} {
	if h.cache == nil {
		return nil
	}
	hit := h.cache.Get(key)
	if !hit.Hit {
		return nil
	}
	report, ok := hit.Value.(map[string]interface{})
	if !ok {
		return nil
	}
	return report
}

func (h *Handlers) cacheReport(key string, report map[string]interface{}, tag string) {
	if h.cache == nil {
		return
	}
	h.cache.Set(key, report, cache.WithTTL(reportTTL), cache.WithTags(tag))
	h.cache.InvalidateByTag(cache.TagDashboards)
}
