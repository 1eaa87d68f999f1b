package mailer

import (
	"context"
	"log/slog"
)

// logSender writes emails to the application log instead of delivering them.
// Used in development and as a fallback when Postmark is not configured.
type logSender struct {
	log *slog.Logger
}

// NewLogSender creates a sender that logs instead of sending.
func NewLogSender(log *slog.Logger) EmailSender {
	return &logSender{log: log}
}

func (s *logSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "email suppressed (log sender)",
		"to", params.SendTo,
		"subject", params.Subject,
		"tag", params.Tag,
	)
	return nil
}
