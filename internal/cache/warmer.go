// File: internal/cache/warmer.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// WarmStrategy selects which high-read entries to preload after a restart.
type WarmStrategy string

const (
	WarmFrequentKeywords WarmStrategy = "frequent_keywords"
	WarmRecentReports    WarmStrategy = "recent_reports"
	WarmActiveCampaigns  WarmStrategy = "active_campaigns"
	WarmDashboards       WarmStrategy = "dashboards"
	WarmAll              WarmStrategy = "all"
)

// Cache key prefixes and tags shared by the warmer and the task handlers.
const (
	KeyPrefixRankings  = "rankings"
	KeyPrefixAudit     = "audit"
	KeyPrefixCampaigns = "campaigns"
	KeyPrefixDashboard = "dashboard"

	TagRankings   = "rankings"
	TagTraffic    = "traffic"
	TagAudits     = "audits"
	TagCampaigns  = "campaigns"
	TagDashboards = "dashboards"
)

// RankingsKey builds the cache key for a business's keyword rankings.
func RankingsKey(businessID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixRankings, businessID)
}

// AuditKey builds the cache key for a business's latest audit.
func AuditKey(businessID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixAudit, businessID)
}

// CampaignTasksKey builds the cache key for a business's active campaign tasks.
func CampaignTasksKey(businessID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixCampaigns, businessID)
}

// DashboardKey builds the cache key for a business dashboard summary.
func DashboardKey(businessID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixDashboard, businessID)
}

// WarmSource provides the reads the warmer needs. Satisfied by the storage
// layer; narrowed here so the cache package does not depend on a concrete
// storage implementation.
type WarmSource interface {
	GetActiveBusinesses(ctx context.Context, limit int) ([]*models.Business, error)
	GetRankingSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.RankingSnapshot, error)
	GetAuditSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.AuditSnapshot, error)
	GetTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
}

// WarmResult summarizes one warm pass.
type WarmResult struct {
	Strategy   WarmStrategy  `json:"strategy"`
	Businesses int           `json:"businesses"`
	Entries    int           `json:"entries_loaded"`
	Duration   time.Duration `json:"duration"`
}

// Warmer proactively populates high-value entries to avoid cold-cache
// latency after a restart.
type Warmer struct {
	store  Store
	source WarmSource
	logger *logrus.Logger

	// businessLimit bounds how many recently active businesses one warm
	// pass touches.
	businessLimit int
}

// NewWarmer creates a cache warmer over the given store and source.
func NewWarmer(store Store, source WarmSource) *Warmer {
	return &Warmer{
		store:         store,
		source:        source,
		logger:        utils.GetLogger(),
		businessLimit: 25,
	}
}

// Warm runs one warming pass for the given strategy.
func (w *Warmer) Warm(ctx context.Context, strategy WarmStrategy) (*WarmResult, error) {
	start := time.Now()

	switch strategy {
	case WarmFrequentKeywords, WarmRecentReports, WarmActiveCampaigns, WarmDashboards, WarmAll:
	case "":
		strategy = WarmAll
	default:
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Unknown warm strategy", string(strategy))
	}

	businesses, err := w.source.GetActiveBusinesses(ctx, w.businessLimit)
	if err != nil {
		return nil, err
	}

	result := &WarmResult{Strategy: strategy, Businesses: len(businesses)}
	window := models.WindowEnding(time.Now(), 7*24*time.Hour)

	for _, business := range businesses {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if strategy == WarmFrequentKeywords || strategy == WarmAll {
			if n := w.warmRankings(ctx, business.ID, window); n > 0 {
				result.Entries += n
			}
		}
		if strategy == WarmRecentReports || strategy == WarmAll {
			if n := w.warmAudits(ctx, business.ID, window); n > 0 {
				result.Entries += n
			}
		}
		if strategy == WarmActiveCampaigns || strategy == WarmAll {
			if n := w.warmCampaigns(ctx, business.ID); n > 0 {
				result.Entries += n
			}
		}
		if strategy == WarmDashboards || strategy == WarmAll {
			w.store.Set(DashboardKey(business.ID), business, WithTags(TagDashboards))
			result.Entries++
		}
	}

	result.Duration = time.Since(start)
	w.logger.WithFields(logrus.Fields{
		"strategy":   strategy,
		"businesses": result.Businesses,
		"entries":    result.Entries,
		"duration":   result.Duration,
	}).Info("Cache warmed")

	return result, nil
}

func (w *Warmer) warmRankings(ctx context.Context, businessID string, window models.SnapshotWindow) int {
	snapshots, err := w.source.GetRankingSnapshots(ctx, businessID, window)
	if err != nil || len(snapshots) == 0 {
		if err != nil {
			w.logger.WithError(err).WithField("business_id", businessID).Warn("Failed to warm rankings")
		}
		return 0
	}
	w.store.Set(RankingsKey(businessID), snapshots, WithTags(TagRankings))
	return 1
}

func (w *Warmer) warmAudits(ctx context.Context, businessID string, window models.SnapshotWindow) int {
	snapshots, err := w.source.GetAuditSnapshots(ctx, businessID, window)
	if err != nil || len(snapshots) == 0 {
		if err != nil {
			w.logger.WithError(err).WithField("business_id", businessID).Warn("Failed to warm audits")
		}
		return 0
	}
	w.store.Set(AuditKey(businessID), snapshots[len(snapshots)-1], WithTags(TagAudits))
	return 1
}

func (w *Warmer) warmCampaigns(ctx context.Context, businessID string) int {
	filter := models.TaskFilter{
		BusinessID: &businessID,
		Statuses:   []models.TaskStatus{models.TaskStatusPending, models.TaskStatusScheduled},
		Limit:      50,
	}
	tasks, err := w.source.GetTasks(ctx, filter)
	if err != nil || len(tasks) == 0 {
		if err != nil {
			w.logger.WithError(err).WithField("business_id", businessID).Warn("Failed to warm campaign tasks")
		}
		return 0
	}
	w.store.Set(CampaignTasksKey(businessID), tasks, WithTags(TagCampaigns))
	return 1
}
