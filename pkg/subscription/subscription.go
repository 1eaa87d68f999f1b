package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/plan"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// validTransitions is the full transition table. Canceled and expired are
// terminal states.
var validTransitions = map[Status][]Status{
	StatusTrial:   {StatusActive, StatusPastDue, StatusCanceled, StatusExpired},
	StatusActive:  {StatusPastDue, StatusCanceled, StatusExpired},
	StatusPastDue: {StatusActive, StatusCanceled, StatusExpired},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Subscription is the per-account subscription row. Exactly one row exists
// per account; rows are never hard-deleted, only moved to canceled or
// expired.
type Subscription struct {
	ID        uuid.UUID
	UserID    string
	AccountID uuid.UUID
	PlanID    uuid.UUID
	Status    Status

	TrialStartDate *time.Time
	TrialEndDate   *time.Time

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	ProcessorCustomerID     string
	ProcessorSubscriptionID string
	CardLastFour            string
	CardBrand               string

	CancelAtPeriodEnd bool
	CanceledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrial creates a trial subscription starting now and ending after
// trialDays. The processor customer id may be empty when no payment-capable
// profile exists yet; such trials are never auto-converted.
func NewTrial(userID string, accountID, planID uuid.UUID, trialDays int, processorCustomerID string) *Subscription {
	now := time.Now().UTC()
	end := now.AddDate(0, 0, trialDays)
	return &Subscription{
		ID:                  uuid.New(),
		UserID:              userID,
		AccountID:           accountID,
		PlanID:              planID,
		Status:              StatusTrial,
		TrialStartDate:      &now,
		TrialEndDate:        &end,
		ProcessorCustomerID: processorCustomerID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Validate checks the structural invariants every transition must preserve.
func (s *Subscription) Validate() error {
	if (s.TrialStartDate == nil) != (s.TrialEndDate == nil) {
		return fmt.Errorf("%w: trial start and end must both be set or both be null", ErrInvalidState)
	}
	if s.Status == StatusTrial && (s.CurrentPeriodStart != nil || s.CurrentPeriodEnd != nil) {
		return fmt.Errorf("%w: a trial subscription cannot carry billing period dates", ErrInvalidState)
	}
	if s.Status == StatusCanceled && s.CanceledAt == nil {
		return fmt.Errorf("%w: canceled subscription must carry canceled_at", ErrInvalidState)
	}
	return nil
}

// IsTrial reports whether the subscription is in its trial period.
func (s *Subscription) IsTrial() bool {
	return s.Status == StatusTrial
}

// IsActive reports whether the subscription grants feature access.
// Past-due, canceled and expired subscriptions do not.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusTrial || s.Status == StatusActive
}

// TrialDaysRemaining returns whole days left in the trial at now, never
// negative. Comparison is UTC-normalized.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if !s.IsTrial() || s.TrialEndDate == nil {
		return 0
	}
	remaining := int(s.TrialEndDate.UTC().Sub(now.UTC()).Hours() / 24)
	return max(0, remaining)
}

// IsTrialExpired reports whether the trial end has passed at now.
func (s *Subscription) IsTrialExpired(now time.Time) bool {
	if s.TrialEndDate == nil {
		return false
	}
	return now.UTC().After(s.TrialEndDate.UTC())
}

// RequiresUpgradePrompt reports whether the UI should push an upgrade:
// a trial in its final week, or an account sitting on the lowest paid tier.
func (s *Subscription) RequiresUpgradePrompt(now time.Time, planSlug string) bool {
	if s.IsTrial() && s.TrialDaysRemaining(now) <= 7 {
		return true
	}
	return planSlug == plan.BasicSlug
}

// Activate moves the subscription into active paid billing. Trial fields are
// cleared and the billing period set in the same step, preserving the
// trial/period mutual-exclusion invariant.
func (s *Subscription) Activate(planID uuid.UUID, processorSubID string, periodStart, periodEnd time.Time) error {
	if s.Status != StatusActive && !CanTransition(s.Status, StatusActive) {
		return fmt.Errorf("%w: cannot activate from %s", ErrInvalidTransition, s.Status)
	}

	s.PlanID = planID
	s.Status = StatusActive
	s.TrialStartDate = nil
	s.TrialEndDate = nil
	s.CurrentPeriodStart = &periodStart
	s.CurrentPeriodEnd = &periodEnd
	s.ProcessorSubscriptionID = processorSubID
	s.CancelAtPeriodEnd = false
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPastDue records a failed charge. The account keeps its subscription
// row but loses feature access until payment recovers.
func (s *Subscription) MarkPastDue() error {
	if s.Status == StatusPastDue {
		return nil
	}
	if !CanTransition(s.Status, StatusPastDue) {
		return fmt.Errorf("%w: cannot mark %s past due", ErrInvalidTransition, s.Status)
	}

	// Leaving trial through a failed conversion also closes the trial window.
	s.TrialStartDate = nil
	s.TrialEndDate = nil
	s.Status = StatusPastDue
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel cancels the subscription. With atPeriodEnd only the flag is set and
// the status stays as-is until the processor reports the period closing;
// otherwise the subscription is canceled immediately. Canceling an
// already-canceled subscription is a conflict.
func (s *Subscription) Cancel(now time.Time, atPeriodEnd bool) error {
	if s.Status == StatusCanceled {
		return ErrAlreadyCanceled
	}

	now = now.UTC()
	s.CancelAtPeriodEnd = atPeriodEnd
	if !atPeriodEnd {
		if !CanTransition(s.Status, StatusCanceled) {
			return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, s.Status)
		}
		s.Status = StatusCanceled
		s.CanceledAt = &now
	}
	s.UpdatedAt = now
	return nil
}

// Expire terminally expires the subscription.
func (s *Subscription) Expire(now time.Time) error {
	if s.Status == StatusExpired {
		return nil
	}
	if !CanTransition(s.Status, StatusExpired) {
		return fmt.Errorf("%w: cannot expire from %s", ErrInvalidTransition, s.Status)
	}

	s.Status = StatusExpired
	s.UpdatedAt = now.UTC()
	return nil
}

// RefreshPeriod updates the billing period from a processor event, e.g. a
// successful renewal. A past-due subscription recovering through payment
// returns to active.
func (s *Subscription) RefreshPeriod(periodStart, periodEnd time.Time) error {
	if s.Status == StatusTrial {
		return fmt.Errorf("%w: a trial subscription has no billing period", ErrInvalidTransition)
	}

	if s.Status == StatusPastDue {
		s.Status = StatusActive
	}
	s.CurrentPeriodStart = &periodStart
	s.CurrentPeriodEnd = &periodEnd
	s.UpdatedAt = time.Now().UTC()
	return nil
}
