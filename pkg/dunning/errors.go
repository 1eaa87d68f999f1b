package dunning

import "errors"

var (
	// ErrAlreadySent is returned when a reminder for the same invoice and
	// rule was already recorded; it is the at-most-once guarantee surfacing.
	ErrAlreadySent = errors.New("dunning reminder already sent for invoice and rule")
	// ErrEmptyRuleName is returned for rules without a name.
	ErrEmptyRuleName = errors.New("dunning rule name is required")
	// ErrInvalidChannel is returned for unknown delivery channels.
	ErrInvalidChannel = errors.New("invalid dunning channel")
	// ErrEmptyTemplate is returned for rules without a message template.
	ErrEmptyTemplate = errors.New("dunning rule message template is required")
	// ErrDeliverySkipped is returned by a notifier that cannot serve the
	// rule's channel; the engine counts it as skipped without recording
	// history, so the reminder is not reported as delivered.
	ErrDeliverySkipped = errors.New("dunning delivery skipped, channel not available")
	// ErrNoRecipient is returned when the invoice's customer has no contact
	// for the rule's channel.
	ErrNoRecipient = errors.New("no recipient for dunning channel")
)
