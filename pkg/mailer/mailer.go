// Package mailer provides a provider-agnostic interface for transactional
// email with a Postmark-backed implementation.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidConfig     = errors.New("invalid mailer configuration")
	ErrInvalidRecipient  = errors.New("invalid recipient email address")
	ErrEmptySubject      = errors.New("email subject cannot be empty")
	ErrEmptyBody         = errors.New("email body cannot be empty")
	ErrFailedToSendEmail = errors.New("failed to send email")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailSender sends a single transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outbound email.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	BodyText string
	Tag      string // optional, for provider-side analytics
}

// Validate rejects parameters that would be refused by any provider.
func (p SendEmailParams) Validate() error {
	if !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, p.SendTo)
	}
	if p.Subject == "" {
		return ErrEmptySubject
	}
	if p.BodyText == "" {
		return ErrEmptyBody
	}
	return nil
}
