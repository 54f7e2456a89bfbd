// File: internal/notification/validate_test.go
package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

func validChatHook() *models.ChannelConfiguration {
	return &models.ChannelConfiguration{
		BusinessID:    "biz-1",
		Name:          "ops-hook",
		Type:          models.ChannelTypeChatHook,
		Settings:      models.ChannelSettings{URL: "https://hooks.example.com/abc"},
		TriggerEvents: []string{string(models.AlertTypeRankingDrop)},
		Active:        true,
	}
}

func TestValidateChannelAccepts(t *testing.T) {
	require.NoError(t, ValidateChannel(validChatHook()))

	email := &models.ChannelConfiguration{
		BusinessID: "biz-1",
		Name:       "ops-email",
		Type:       models.ChannelTypeEmail,
		Settings: models.ChannelSettings{
			SMTPHost:    "smtp.example.com",
			SMTPPort:    587,
			FromAddress: "alerts@example.com",
			Recipients:  []string{"ops@example.com"},
		},
		TriggerEvents: []string{string(models.AlertTypeTrafficDrop)},
	}
	require.NoError(t, ValidateChannel(email))
}

func TestValidateChannelNil(t *testing.T) {
	err := ValidateChannel(nil)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestValidateChannelCollectsAllViolations(t *testing.T) {
	cfg := &models.ChannelConfiguration{
		Type: models.ChannelTypeEmail,
		Settings: models.ChannelSettings{
			FromAddress: "not-an-email",
		},
	}

	err := ValidateChannel(cfg)
	require.Error(t, err)

	appErr, ok := err.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCodeValidation, appErr.Code)

	// every violation is reported, not just the first
	assert.Contains(t, appErr.Details, "BusinessID is required")
	assert.Contains(t, appErr.Details, "Name is required")
	assert.Contains(t, appErr.Details, "FromAddress must be a valid email address")
	assert.Contains(t, appErr.Details, "smtp_host")
	assert.Contains(t, appErr.Details, "smtp_port")
	assert.Contains(t, appErr.Details, "at least one recipient")
}

func TestValidateChannelTypeSpecific(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.ChannelConfiguration)
		detail string
	}{
		{
			"chat_hook missing url",
			func(c *models.ChannelConfiguration) { c.Settings.URL = "" },
			"chat_hook channels require settings.url",
		},
		{
			"unknown type",
			func(c *models.ChannelConfiguration) { c.Type = "carrier_pigeon" },
			"unknown channel_type",
		},
		{
			"missing type",
			func(c *models.ChannelConfiguration) { c.Type = "" },
			"channel_type is required",
		},
		{
			"empty trigger event",
			func(c *models.ChannelConfiguration) { c.TriggerEvents = []string{""} },
			"trigger_events must not contain empty entries",
		},
		{
			"invalid url",
			func(c *models.ChannelConfiguration) { c.Settings.URL = "not a url" },
			"URL must be a valid URL",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validChatHook()
			tc.mutate(cfg)

			err := ValidateChannel(cfg)
			require.Error(t, err)
			appErr, ok := err.(*utils.AppError)
			require.True(t, ok)
			assert.Contains(t, appErr.Details, tc.detail)
		})
	}
}

func TestValidateChannelRequiresTriggerEvents(t *testing.T) {
	cfg := validChatHook()
	cfg.TriggerEvents = nil

	err := ValidateChannel(cfg)
	require.Error(t, err)
	appErr, ok := err.(*utils.AppError)
	require.True(t, ok)
	assert.Contains(t, appErr.Details, "TriggerEvents")
}
