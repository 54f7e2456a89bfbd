// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// WebhookSender delivers events over HTTP for chat-hook and custom HTTP
// channels. One attempt per delivery; the caller owns the timeout.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
	}
}

// chatCard is the message card posted to chat hooks. The layout follows the
// common incoming-webhook card shape accepted by the major chat products.
type chatCard struct {
	Title      string        `json:"title"`
	Text       string        `json:"text"`
	ThemeColor string        `json:"themeColor,omitempty"`
	Sections   []cardSection `json:"sections,omitempty"`
}

type cardSection struct {
	Facts []cardFact `json:"facts"`
}

type cardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// customEnvelope is the JSON body sent to custom HTTP endpoints.
type customEnvelope struct {
	EventType    string                 `json:"event_type"`
	Severity     string                 `json:"severity"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	BusinessID   string                 `json:"business_id"`
	BusinessName string                 `json:"business_name,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	ActionURL    string                 `json:"action_url,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// SendChatHook posts a message card to the channel's webhook URL.
func (ws *WebhookSender) SendChatHook(ctx context.Context, settings *models.ChannelSettings, event *models.NotificationEvent) (int, error) {
	card := &chatCard{
		Title:      event.Title,
		Text:       event.Message,
		ThemeColor: severityColor(event.Severity),
	}

	facts := []cardFact{
		{Name: "Severity", Value: string(event.Severity)},
		{Name: "Business", Value: event.BusinessName},
	}
	if event.ActionURL != "" {
		facts = append(facts, cardFact{Name: "Details", Value: event.ActionURL})
	}
	card.Sections = []cardSection{{Facts: facts}}

	return ws.post(ctx, settings.URL, http.MethodPost, nil, card)
}

// SendCustomHTTP sends the full event envelope to a custom endpoint with
// the configured method and headers.
func (ws *WebhookSender) SendCustomHTTP(ctx context.Context, settings *models.ChannelSettings, event *models.NotificationEvent) (int, error) {
	envelope := &customEnvelope{
		EventType:    event.Type,
		Severity:     string(event.Severity),
		Title:        event.Title,
		Message:      event.Message,
		BusinessID:   event.BusinessID,
		BusinessName: event.BusinessName,
		Data:         event.Data,
		ActionURL:    event.ActionURL,
		Timestamp:    event.Timestamp,
	}

	method := strings.ToUpper(settings.Method)
	if method == "" {
		method = http.MethodPost
	}
	return ws.post(ctx, settings.URL, method, settings.Headers, envelope)
}

func (ws *WebhookSender) post(ctx context.Context, url, method string, headers map[string]string, body interface{}) (int, error) {
	if url == "" {
		return 0, utils.NewAppError(utils.ErrCodeConfiguration, "Webhook URL is empty", "")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDelivery, "Failed to encode webhook payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDelivery, "Failed to build webhook request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "marketpulse-orchestrator/1.0")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDelivery, "Webhook request failed", err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, utils.NewAppError(utils.ErrCodeDelivery,
			fmt.Sprintf("Webhook returned status %d", resp.StatusCode), url)
	}
	return resp.StatusCode, nil
}
