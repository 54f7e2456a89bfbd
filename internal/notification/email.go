// File: internal/notification/email.go
package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// EmailSender delivers events over SMTP for email channels.
type EmailSender struct {
	timeout time.Duration
}

// NewEmailSender creates a new email sender
func NewEmailSender(timeout time.Duration) *EmailSender {
	return &EmailSender{timeout: timeout}
}

// Send delivers one event to the channel's recipients. SMTP has no native
// context support, so the send runs in a goroutine bounded by ctx.
func (es *EmailSender) Send(ctx context.Context, settings *models.ChannelSettings, event *models.NotificationEvent) error {
	if settings.SMTPHost == "" || len(settings.Recipients) == 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Email channel missing SMTP host or recipients", "")
	}

	message := es.buildMessage(settings, event)

	done := make(chan error, 1)
	go func() {
		if settings.UseTLS {
			done <- es.sendTLS(settings, message)
		} else {
			done <- es.sendPlain(settings, message)
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDelivery, "SMTP send failed", err.Error())
		}
		return nil
	case <-ctx.Done():
		return utils.NewAppError(utils.ErrCodeDelivery, "SMTP send timed out", ctx.Err().Error())
	}
}

func (es *EmailSender) sendTLS(settings *models.ChannelSettings, message []byte) error {
	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: settings.SMTPHost})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, settings.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Quit()

	if settings.Username != "" {
		auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(settings.FromAddress); err != nil {
		return err
	}
	for _, recipient := range settings.Recipients {
		if err := client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(message); err != nil {
		return err
	}
	return writer.Close()
}

func (es *EmailSender) sendPlain(settings *models.ChannelSettings, message []byte) error {
	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)

	var auth smtp.Auth
	if settings.Username != "" {
		auth = smtp.PlainAuth("", settings.Username, settings.Password, settings.SMTPHost)
	}
	return smtp.SendMail(addr, auth, settings.FromAddress, settings.Recipients, message)
}

func (es *EmailSender) buildMessage(settings *models.ChannelSettings, event *models.NotificationEvent) []byte {
	var b strings.Builder

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(event.Severity)), event.Title)

	b.WriteString(fmt.Sprintf("From: %s\r\n", settings.FromAddress))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(settings.Recipients, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2 style=\"color: %s;\">%s</h2>", severityColor(event.Severity), event.Title))
	b.WriteString(fmt.Sprintf("<p>%s</p>", event.Message))
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	b.WriteString(fmt.Sprintf("<tr><td><b>Severity</b></td><td>%s</td></tr>", event.Severity))
	if event.BusinessName != "" {
		b.WriteString(fmt.Sprintf("<tr><td><b>Business</b></td><td>%s</td></tr>", event.BusinessName))
	}
	b.WriteString(fmt.Sprintf("<tr><td><b>Time</b></td><td>%s</td></tr>", event.Timestamp.Format(time.RFC1123)))
	b.WriteString("</table>")
	if event.ActionURL != "" {
		b.WriteString(fmt.Sprintf("<p><a href=\"%s\">View in dashboard</a></p>", event.ActionURL))
	}
	b.WriteString("</body></html>\r\n")

	return []byte(b.String())
}

func severityColor(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "#b71c1c"
	case models.SeverityHigh:
		return "#d32f2f"
	case models.SeverityMedium:
		return "#f57c00"
	default:
		return "#388e3c"
	}
}
