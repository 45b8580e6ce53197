package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	ErrKeyMissing           = errors.New("sendgrid api key is not set")
	ErrInvalidMailSender    = errors.New("invalid mail sender")
	ErrInvalidMailRecipient = errors.New("invalid mail recipient")
	ErrSendFailed           = errors.New("email not accepted")
)

type EmailService struct {
	config *Config
}

func NewEmailService(config *Config) *EmailService {
	return &EmailService{config: config}
}

func (s *EmailService) IsEnabled() bool {
	return s.config.Enabled
}

// Send delivers data through sendgrid. The sender defaults to the configured address.
func (s *EmailService) Send(ctx context.Context, data *EmailInfo) error {
	if !s.IsEnabled() {
		slog.Debug("email disabled, not sending", "to", data.ToEmail, "subject", data.Subject)
		return nil
	}

	if s.config.SendgridAPIKey == "" {
		return ErrKeyMissing
	}

	if data.FromEmail == "" {
		data.FromEmail = s.config.FromEmail
	}
	if data.FromName == "" {
		data.FromName = s.config.FromName
	}
	if data.FromName == "" {
		data.FromName = DefaultFromName
	}

	if data.FromEmail == "" {
		return ErrInvalidMailSender
	}

	if data.ToEmail == "" {
		return ErrInvalidMailRecipient
	}

	if data.ToName == "" {
		data.ToName = data.ToEmail
	}

	from := mail.NewEmail(data.FromName, data.FromEmail)
	to := mail.NewEmail(data.ToName, data.ToEmail)

	message := mail.NewSingleEmail(from, data.Subject, to, "", data.HTMLBody)
	client := sendgrid.NewSendClient(s.config.SendgridAPIKey)

	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		slog.Error("failed to send email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	slog.Debug("email sent", "to", data.ToEmail, "status", resp.StatusCode, "messageId", resp.Headers["X-Message-Id"])
	return nil
}

var _ Service = (*EmailService)(nil)
