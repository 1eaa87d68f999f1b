package billing

import (
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// EventType is the normalized processor event kind consumed by the
// subscription service.
type EventType string

const (
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
)

// Event is a normalized webhook event. Raw provider payloads are mapped here
// so the subscription service never sees provider-specific shapes.
type Event struct {
	Type           EventType
	ProviderEvent  string
	CustomerID     string
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

var (
	// ErrUnhandledEvent marks provider events this core does not consume.
	ErrUnhandledEvent = errors.New("unhandled processor event")
	// ErrWebhookVerification marks signature verification failures.
	ErrWebhookVerification = errors.New("webhook signature verification failed")
)

// stripeEventTypes maps Stripe event names to normalized types.
var stripeEventTypes = map[string]EventType{
	"invoice.payment_succeeded":     EventPaymentSucceeded,
	"invoice.payment_failed":        EventPaymentFailed,
	"customer.subscription.updated": EventSubscriptionUpdated,
	"customer.subscription.deleted": EventSubscriptionDeleted,
}

// WebhookVerifier validates and normalizes incoming webhook payloads.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the given endpoint secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifies the payload signature and maps it to a normalized Event.
// Events outside the consumed set return ErrUnhandledEvent so callers can
// acknowledge them without acting.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerification, err)
	}

	kind, ok := stripeEventTypes[string(stripeEvent.Type)]
	if !ok {
		return nil, ErrUnhandledEvent
	}

	evt := &Event{
		Type:          kind,
		ProviderEvent: string(stripeEvent.Type),
	}

	obj := stripeEvent.Data.Object
	if s, ok := obj["customer"].(string); ok {
		evt.CustomerID = s
	}
	switch kind {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if s, ok := obj["id"].(string); ok {
			evt.SubscriptionID = s
		}
	default:
		if s, ok := obj["subscription"].(string); ok {
			evt.SubscriptionID = s
		}
	}
	if ts, ok := obj["current_period_start"].(float64); ok {
		evt.PeriodStart = time.Unix(int64(ts), 0).UTC()
	}
	if ts, ok := obj["current_period_end"].(float64); ok {
		evt.PeriodEnd = time.Unix(int64(ts), 0).UTC()
	}

	return evt, nil
}
