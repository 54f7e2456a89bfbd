// File: internal/notification/validate.go
package notification

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

var validate = validator.New()

// ValidateChannel checks a channel configuration at write time. All
// violations are collected and returned together rather than stopping at
// the first one.
func ValidateChannel(cfg *models.ChannelConfiguration) error {
	if cfg == nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Channel configuration is required", "")
	}

	var violations []string

	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range fieldErrors {
				violations = append(violations, describeFieldError(fieldErr))
			}
		} else {
			violations = append(violations, err.Error())
		}
	}

	switch cfg.Type {
	case models.ChannelTypeChatHook:
		if cfg.Settings.URL == "" {
			violations = append(violations, "chat_hook channels require settings.url")
		}
	case models.ChannelTypeCustomHTTP:
		if cfg.Settings.URL == "" {
			violations = append(violations, "custom_http channels require settings.url")
		}
	case models.ChannelTypeEmail:
		if cfg.Settings.SMTPHost == "" {
			violations = append(violations, "email channels require settings.smtp_host")
		}
		if cfg.Settings.SMTPPort <= 0 {
			violations = append(violations, "email channels require a positive settings.smtp_port")
		}
		if cfg.Settings.FromAddress == "" {
			violations = append(violations, "email channels require settings.from_address")
		}
		if len(cfg.Settings.Recipients) == 0 {
			violations = append(violations, "email channels require at least one recipient")
		}
	case "":
		violations = append(violations, "channel_type is required")
	default:
		violations = append(violations, fmt.Sprintf("unknown channel_type: %s", cfg.Type))
	}

	for _, eventType := range cfg.TriggerEvents {
		if eventType == "" {
			violations = append(violations, "trigger_events must not contain empty entries")
			break
		}
	}

	if len(violations) > 0 {
		return utils.NewAppError(utils.ErrCodeValidation,
			"Channel configuration is invalid", strings.Join(violations, "; "))
	}
	return nil
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fieldErr.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fieldErr.Field())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", fieldErr.Field(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag())
	}
}
