// File: internal/notification/notification_test.go
package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// fakeStore is an in-memory Storage covering the dispatcher's channel reads
// and writes.
type fakeStore struct {
	storage.Storage

	mu       sync.Mutex
	channels map[string]*models.ChannelConfiguration
}

func newFakeStore() *fakeStore {
	return &fakeStore{channels: make(map[string]*models.ChannelConfiguration)}
}

func (f *fakeStore) SaveChannel(ctx context.Context, channel *models.ChannelConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *channel
	f.channels[channel.ID] = &copied
	return nil
}

func (f *fakeStore) GetChannel(ctx context.Context, id, businessID string) (*models.ChannelConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.channels[id]
	if !ok || channel.BusinessID != businessID {
		return nil, nil
	}
	copied := *channel
	return &copied, nil
}

func (f *fakeStore) GetChannelByName(ctx context.Context, businessID, name string) (*models.ChannelConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, channel := range f.channels {
		if channel.BusinessID == businessID && channel.Name == name {
			copied := *channel
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetChannels(ctx context.Context, businessID string, activeOnly bool) ([]*models.ChannelConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ChannelConfiguration
	for _, channel := range f.channels {
		if channel.BusinessID != businessID {
			continue
		}
		if activeOnly && !channel.Active {
			continue
		}
		copied := *channel
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStore) DeleteChannel(ctx context.Context, id, businessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.channels[id]
	if !ok || channel.BusinessID != businessID {
		return utils.NewAppError(utils.ErrCodeNotFound, "Channel not found", id)
	}
	delete(f.channels, id)
	return nil
}

func newTestDispatcher(store *fakeStore) *Dispatcher {
	return NewDispatcher(store, &Config{
		DeliveryTimeout: 2 * time.Second,
		RatePerSecond:   1000,
		RateBurst:       1000,
		DashboardURL:    "https://dashboard.example.com",
	}, nil)
}

func hookChannel(id, businessID, url string) *models.ChannelConfiguration {
	return &models.ChannelConfiguration{
		ID:            id,
		BusinessID:    businessID,
		Name:          "channel-" + id,
		Type:          models.ChannelTypeChatHook,
		Settings:      models.ChannelSettings{URL: url},
		TriggerEvents: []string{string(models.AlertTypeRankingDrop)},
		Active:        true,
	}
}

func rankingDropEvent(businessID string) *models.NotificationEvent {
	return &models.NotificationEvent{
		Type:         string(models.AlertTypeRankingDrop),
		Severity:     models.SeverityHigh,
		Title:        "Ranking drop for \"seo tools\"",
		Message:      "\"seo tools\" fell from position 4 to 16",
		BusinessID:   businessID,
		BusinessName: "Acme",
		Timestamp:    time.Now().UTC(),
	}
}

func TestDispatchEventDeliversToMatchingChannels(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)

		var card chatCard
		require.NoError(t, json.NewDecoder(r.Body).Decode(&card))
		assert.Equal(t, "Ranking drop for \"seo tools\"", card.Title)
		assert.Equal(t, severityColor(models.SeverityHigh), card.ThemeColor, "cards are color coded by severity")
		require.Len(t, card.Sections, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-1", "biz-1", server.URL)))

	// subscribed to a different event type, must not receive anything
	other := hookChannel("ch-2", "biz-1", server.URL)
	other.TriggerEvents = []string{string(models.AlertTypeTrafficDrop)}
	require.NoError(t, store.SaveChannel(ctx, other))

	// inactive channels never match
	inactive := hookChannel("ch-3", "biz-1", server.URL)
	inactive.Active = false
	require.NoError(t, store.SaveChannel(ctx, inactive))

	d := newTestDispatcher(store)
	result, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDispatchEventSeverityFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()

	filtered := hookChannel("ch-1", "biz-1", server.URL)
	filtered.Filters = &models.ChannelFilters{
		SeverityLevels: []models.AlertSeverity{models.SeverityCritical},
	}
	require.NoError(t, store.SaveChannel(ctx, filtered))

	d := newTestDispatcher(store)
	result, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched, "high severity does not pass a critical-only filter")
}

func TestDispatchEventAlertTypeFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()

	filtered := hookChannel("ch-1", "biz-1", server.URL)
	filtered.TriggerEvents = []string{
		string(models.AlertTypeRankingDrop),
		string(models.AlertTypeTrafficDrop),
	}
	filtered.Filters = &models.ChannelFilters{
		AlertTypes: []models.AlertType{models.AlertTypeTrafficDrop},
	}
	require.NoError(t, store.SaveChannel(ctx, filtered))

	d := newTestDispatcher(store)
	result, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
}

func TestDeliveryFailureIsRecordedNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-1", "biz-1", server.URL)))

	d := newTestDispatcher(store)
	result, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err, "delivery failures do not fail the dispatch")

	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Delivered)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 1)
	require.NotNil(t, result.Results[0].Error)
	assert.Contains(t, *result.Results[0].Error, "status 500")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "exactly one attempt per channel per event")
}

func TestOneChannelFailureDoesNotAffectOthers(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-good", "biz-1", good.URL)))
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-bad", "biz-1", bad.URL)))

	d := newTestDispatcher(store)
	result, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Failed)
}

func TestHandleAlertBuildsActionURL(t *testing.T) {
	var captured customEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()
	channel := hookChannel("ch-1", "biz-1", server.URL)
	channel.Type = models.ChannelTypeCustomHTTP
	require.NoError(t, store.SaveChannel(ctx, channel))

	d := newTestDispatcher(store)
	alert := &models.Alert{
		ID:         "alert-9",
		BusinessID: "biz-1",
		Type:       models.AlertTypeRankingDrop,
		Severity:   models.SeverityHigh,
		Title:      "Ranking drop",
		Message:    "details",
		CreatedAt:  time.Now().UTC(),
	}
	business := &models.Business{ID: "biz-1", Name: "Acme"}

	require.NoError(t, d.HandleAlert(ctx, business, alert))
	assert.Equal(t, "https://dashboard.example.com/businesses/biz-1/alerts/alert-9", captured.ActionURL)
	assert.Equal(t, "Acme", captured.BusinessName)
	assert.Equal(t, string(models.AlertTypeRankingDrop), captured.EventType)
}

func TestCustomHTTPMethodAndHeaders(t *testing.T) {
	var method, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(2 * time.Second)
	settings := &models.ChannelSettings{
		URL:     server.URL,
		Method:  "put",
		Headers: map[string]string{"Authorization": "Bearer token-123"},
	}

	status, err := sender.SendCustomHTTP(context.Background(), settings, rankingDropEvent("biz-1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "Bearer token-123", auth)
}

func TestConfigureChannelUpsertsByName(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store)
	ctx := context.Background()

	created, err := d.ConfigureChannel(ctx, &models.ChannelConfiguration{
		BusinessID:    "biz-1",
		Name:          "ops-hook",
		Type:          models.ChannelTypeChatHook,
		Settings:      models.ChannelSettings{URL: "https://hooks.example.com/a"},
		TriggerEvents: []string{string(models.AlertTypeRankingDrop)},
		Active:        true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	updated, err := d.ConfigureChannel(ctx, &models.ChannelConfiguration{
		BusinessID:    "biz-1",
		Name:          "ops-hook",
		Type:          models.ChannelTypeChatHook,
		Settings:      models.ChannelSettings{URL: "https://hooks.example.com/b"},
		TriggerEvents: []string{string(models.AlertTypeRankingDrop)},
		Active:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID, "name is the upsert key within a business")
	assert.Equal(t, "https://hooks.example.com/b", updated.Settings.URL)
}

func TestTestChannelSendsSyntheticEvent(t *testing.T) {
	var captured chatCard
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-1", "biz-1", server.URL)))

	d := newTestDispatcher(store)
	result, err := d.TestChannel(ctx, "ch-1", "biz-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Test notification", captured.Title)

	_, err = d.TestChannel(ctx, "ghost", "biz-1")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestDispatchValidation(t *testing.T) {
	d := newTestDispatcher(newFakeStore())
	ctx := context.Background()

	_, err := d.DispatchEvent(ctx, nil)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	_, err = d.DispatchEvent(ctx, &models.NotificationEvent{Type: "x"})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestDispatcherStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChannel(ctx, hookChannel("ch-1", "biz-1", server.URL)))

	d := newTestDispatcher(store)
	_, err := d.DispatchEvent(ctx, rankingDropEvent("biz-1"))
	require.NoError(t, err)

	stats := d.GetStats()
	assert.Equal(t, int64(1), stats.EventsDispatched)
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Equal(t, int64(0), stats.Failed)
	require.NotNil(t, stats.LastDispatch)
}
