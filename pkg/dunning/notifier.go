package dunning

import (
	"context"
	"errors"
	"log/slog"

	"github.com/payflowhq/payflow/pkg/mailer"
)

// Notification is one reminder ready for delivery.
type Notification struct {
	Channel Channel
	Email   string
	Phone   string
	Subject string
	Message string
}

// Notifier delivers a dunning reminder. A failed delivery must return an
// error so the engine skips recording and retries on the next matching day —
// which, with exact-day matching, means the reminder is simply dropped.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// EmailNotifier delivers reminders over transactional email. SMS-only
// reminders return ErrDeliverySkipped until an SMS provider is wired in; a
// rule with channel "both" still gets its email leg.
type EmailNotifier struct {
	sender mailer.EmailSender
	log    *slog.Logger
}

// NewEmailNotifier creates a mail-backed notifier.
func NewEmailNotifier(sender mailer.EmailSender, log *slog.Logger) *EmailNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &EmailNotifier{sender: sender, log: log}
}

func (n *EmailNotifier) Send(ctx context.Context, msg Notification) error {
	if msg.Channel == ChannelSMS || msg.Channel == ChannelBoth {
		n.log.InfoContext(ctx, "sms dunning leg skipped, no sms provider configured",
			"phone", msg.Phone)
		if msg.Channel == ChannelSMS {
			// Nothing was delivered, so the engine must not record the
			// reminder as sent.
			return ErrDeliverySkipped
		}
	}

	if msg.Email == "" {
		return errors.Join(ErrNoRecipient, errors.New("customer has no email"))
	}
	return n.sender.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:   msg.Email,
		Subject:  msg.Subject,
		BodyText: msg.Message,
		Tag:      "dunning",
	})
}
