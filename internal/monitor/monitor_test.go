// File: internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// fakeStore is an in-memory Storage covering the calls the alert engine
// makes. Unused Storage methods come from the embedded nil interface.
type fakeStore struct {
	storage.Storage

	mu         sync.Mutex
	businesses map[string]*models.Business
	configs    map[string]map[models.AlertType]*models.AlertConfiguration
	alerts     map[string]*models.Alert

	rankings    []*models.RankingSnapshot
	traffic     []*models.TrafficSnapshot
	audits      []*models.AuditSnapshot
	competitors []*models.CompetitorSnapshot
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses: make(map[string]*models.Business),
		configs:    make(map[string]map[models.AlertType]*models.AlertConfiguration),
		alerts:     make(map[string]*models.Alert),
	}
}

func (f *fakeStore) addBusiness(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.businesses[id] = &models.Business{ID: id, Name: "Business " + id, Active: true}
}

func (f *fakeStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.businesses[id], nil
}

func (f *fakeStore) GetActiveBusinesses(ctx context.Context, limit int) ([]*models.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Business
	for _, b := range f.businesses {
		if b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveAlertConfiguration(ctx context.Context, cfg *models.AlertConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byType, ok := f.configs[cfg.BusinessID]
	if !ok {
		byType = make(map[models.AlertType]*models.AlertConfiguration)
		f.configs[cfg.BusinessID] = byType
	}
	copied := *cfg
	byType[cfg.AlertType] = &copied
	return nil
}

func (f *fakeStore) GetAlertConfiguration(ctx context.Context, businessID string, alertType models.AlertType) (*models.AlertConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[businessID][alertType]
	if !ok {
		return nil, nil
	}
	copied := *cfg
	return &copied, nil
}

func (f *fakeStore) GetAlertConfigurations(ctx context.Context, businessID string) ([]*models.AlertConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AlertConfiguration
	for _, cfg := range f.configs[businessID] {
		copied := *cfg
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *alert
	f.alerts[alert.ID] = &copied
	return nil
}

func (f *fakeStore) GetAlert(ctx context.Context, id, businessID string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok || alert.BusinessID != businessID {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (f *fakeStore) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Alert
	for _, alert := range f.alerts {
		if filter.BusinessID != nil && alert.BusinessID != *filter.BusinessID {
			continue
		}
		if filter.Type != nil && alert.Type != *filter.Type {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStore) UpdateAlertStatus(ctx context.Context, id, businessID string, status models.AlertStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert, ok := f.alerts[id]
	if !ok || alert.BusinessID != businessID {
		return utils.NewAppError(utils.ErrCodeNotFound, "Alert not found", id)
	}
	alert.Status = status
	switch status {
	case models.AlertStatusAcknowledged:
		alert.AcknowledgedAt = &at
	case models.AlertStatusResolved:
		alert.ResolvedAt = &at
	}
	return nil
}

func (f *fakeStore) GetRankingSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.RankingSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RankingSnapshot
	for _, snap := range f.rankings {
		if snap.BusinessID == businessID && !snap.CapturedAt.Before(window.From) && !snap.CapturedAt.After(window.To) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTrafficSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.TrafficSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TrafficSnapshot
	for _, snap := range f.traffic {
		if snap.BusinessID == businessID && !snap.CapturedAt.Before(window.From) && !snap.CapturedAt.After(window.To) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAuditSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.AuditSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditSnapshot
	for _, snap := range f.audits {
		if snap.BusinessID == businessID && !snap.CapturedAt.Before(window.From) && !snap.CapturedAt.After(window.To) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCompetitorSnapshots(ctx context.Context, businessID string, window models.SnapshotWindow) ([]*models.CompetitorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CompetitorSnapshot
	for _, snap := range f.competitors {
		if snap.BusinessID == businessID && !snap.CapturedAt.Before(window.From) && !snap.CapturedAt.After(window.To) {
			out = append(out, snap)
		}
	}
	return out, nil
}

// recordingSink captures fanned-out alerts for assertions.
type recordingSink struct {
	mu     sync.Mutex
	alerts []*models.Alert
	err    error
}

func (r *recordingSink) HandleAlert(ctx context.Context, business *models.Business, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingSink) received() []*models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Alert(nil), r.alerts...)
}

func newTestEngine(store *fakeStore) *AlertEngine {
	return NewAlertEngine(store, &Config{LookbackWindow: 7 * 24 * time.Hour}, nil)
}

func TestCheckBusinessSeedsDefaultConfigurations(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	engine := newTestEngine(store)

	result, err := engine.CheckBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)
	assert.Len(t, result.Checked, 4)

	configs, err := store.GetAlertConfigurations(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Len(t, configs, 4)
	for _, cfg := range configs {
		assert.NotEmpty(t, cfg.ID)
		assert.True(t, cfg.Active)
	}
}

func TestCheckBusinessUnknownBusiness(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.CheckBusiness(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestCheckBusinessRaisesRankingDrop(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	now := time.Now().UTC()
	store.rankings = []*models.RankingSnapshot{
		{BusinessID: "biz-1", Keyword: "seo tools", Position: 4, CapturedAt: now.Add(-48 * time.Hour)},
		{BusinessID: "biz-1", Keyword: "seo tools", Position: 16, CapturedAt: now.Add(-1 * time.Hour)},
	}

	engine := newTestEngine(store)
	sink := &recordingSink{}
	engine.AddSink(sink)

	result, err := engine.CheckBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	require.Len(t, result.Alerts, 1)

	alert := result.Alerts[0]
	assert.Equal(t, models.AlertTypeRankingDrop, alert.Type)
	assert.Equal(t, models.SeverityHigh, alert.Severity, "a 12 position drop scores high")
	assert.Equal(t, models.AlertStatusActive, alert.Status)
	assert.Equal(t, 16.0, alert.CurrentValue)
	require.NotNil(t, alert.PreviousValue)
	assert.Equal(t, 4.0, *alert.PreviousValue)
	assert.Equal(t, "seo tools", alert.TriggerData["keyword"])

	received := sink.received()
	require.Len(t, received, 1)
	assert.Equal(t, alert.ID, received[0].ID)
}

func TestSinkErrorDoesNotBlockOtherSinks(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	now := time.Now().UTC()
	store.competitors = []*models.CompetitorSnapshot{
		{BusinessID: "biz-1", LowDifficultyGaps: 5, TotalGaps: 9, CapturedAt: now.Add(-time.Hour)},
	}

	engine := newTestEngine(store)
	failing := &recordingSink{err: utils.NewAppError(utils.ErrCodeDelivery, "Webhook returned status 500", "")}
	healthy := &recordingSink{}
	engine.AddSink(failing)
	engine.AddSink(healthy)

	result, err := engine.CheckBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	require.Len(t, result.Alerts, 1)
	assert.Len(t, healthy.received(), 1, "later sinks still receive the alert")
}

func TestCheckAll(t *testing.T) {
	store := newFakeStore()
	store.addBusiness("biz-1")
	store.addBusiness("biz-2")
	now := time.Now().UTC()
	store.audits = []*models.AuditSnapshot{
		{BusinessID: "biz-1", Score: 90, CriticalIssues: 1, CapturedAt: now.Add(-48 * time.Hour)},
		{BusinessID: "biz-1", Score: 70, CriticalIssues: 1, CapturedAt: now.Add(-1 * time.Hour)},
	}

	engine := newTestEngine(store)
	summary, err := engine.CheckAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Businesses)
	assert.Equal(t, 1, summary.Alerts)
	assert.Equal(t, 0, summary.Errors)

	stats := engine.GetStats()
	assert.Equal(t, int64(1), stats.CheckPasses)
	assert.Equal(t, int64(1), stats.AlertsTriggered)
	require.NotNil(t, stats.LastCheck)
}

func TestAcknowledgeAndResolveAlert(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	require.NoError(t, store.SaveAlert(ctx, &models.Alert{
		ID:         "alert-1",
		BusinessID: "biz-1",
		Type:       models.AlertTypeTrafficDrop,
		Severity:   models.SeverityMedium,
		Status:     models.AlertStatusActive,
	}))

	acked, err := engine.AcknowledgeAlert(ctx, "alert-1", "biz-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	// acknowledging twice is rejected
	_, err = engine.AcknowledgeAlert(ctx, "alert-1", "biz-1")
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	resolved, err := engine.ResolveAlert(ctx, "alert-1", "biz-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = engine.ResolveAlert(ctx, "alert-1", "biz-1")
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestResolveActiveAlertDirectly(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	require.NoError(t, store.SaveAlert(ctx, &models.Alert{
		ID:         "alert-1",
		BusinessID: "biz-1",
		Type:       models.AlertTypeTrafficDrop,
		Status:     models.AlertStatusActive,
	}))

	resolved, err := engine.ResolveAlert(ctx, "alert-1", "biz-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
}

func TestAlertLifecycleUnknownAlert(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.AcknowledgeAlert(context.Background(), "ghost", "biz-1")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestConfigureAlertUpsert(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	created, err := engine.ConfigureAlert(ctx, &models.AlertConfiguration{
		BusinessID: "biz-1",
		AlertType:  models.AlertTypeRankingDrop,
		Thresholds: map[string]float64{models.ThresholdPositionDrop: 3},
		Active:     true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.FrequencyDaily, created.CheckFrequency, "empty frequency defaults to daily")

	updated, err := engine.ConfigureAlert(ctx, &models.AlertConfiguration{
		BusinessID: "biz-1",
		AlertType:  models.AlertTypeRankingDrop,
		Thresholds: map[string]float64{models.ThresholdPositionDrop: 8},
		Active:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID, "reconfiguring the same type updates in place")
	assert.Equal(t, 8.0, updated.Thresholds[models.ThresholdPositionDrop])
}

func TestConfigureAlertValidation(t *testing.T) {
	engine := newTestEngine(newFakeStore())
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  *models.AlertConfiguration
	}{
		{"nil config", nil},
		{"missing business", &models.AlertConfiguration{AlertType: models.AlertTypeRankingDrop, Thresholds: map[string]float64{"x": 1}}},
		{"unknown type", &models.AlertConfiguration{BusinessID: "biz-1", AlertType: "mystery", Thresholds: map[string]float64{"x": 1}}},
		{"no thresholds", &models.AlertConfiguration{BusinessID: "biz-1", AlertType: models.AlertTypeRankingDrop}},
		{"bad frequency", &models.AlertConfiguration{BusinessID: "biz-1", AlertType: models.AlertTypeRankingDrop, Thresholds: map[string]float64{"x": 1}, CheckFrequency: "hourly"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.ConfigureAlert(ctx, tc.cfg)
			require.Error(t, err)
			assert.True(t, utils.IsValidation(err))
		})
	}
}
