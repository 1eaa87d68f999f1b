package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/plan"
)

const defaultTrialDays = 14

// Factory builds the subscription to insert when an account has none yet.
// It runs inside the tenant lock, so side effects (like minting a processor
// customer) happen at most once per account even under concurrent requests.
type Factory func(ctx context.Context) (*Subscription, error)

// Service owns the subscription lifecycle: the atomic get-or-create factory,
// trial start, plan changes, cancellation and processor webhook application.
type Service struct {
	subs      Store
	plans     plan.Store
	processor billing.Processor
	log       *slog.Logger
	trialDays int
	currency  string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTrialDays overrides the default trial length.
func WithTrialDays(days int) Option {
	return func(s *Service) { s.trialDays = days }
}

// WithCurrency overrides the billing currency.
func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = currency }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a subscription service.
func NewService(subs Store, plans plan.Store, processor billing.Processor, opts ...Option) *Service {
	s := &Service{
		subs:      subs,
		plans:     plans,
		processor: processor,
		log:       slog.Default(),
		trialDays: defaultTrialDays,
		currency:  "eur",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the account's subscription or ErrNotFound.
func (s *Service) Current(ctx context.Context, accountID uuid.UUID) (*Subscription, error) {
	return s.subs.GetByAccount(ctx, accountID)
}

// GetOrCreate returns the account's subscription, creating it through factory
// when none exists. The check and the insert run under a per-identity tenant
// lock, so two concurrent first requests for the same user produce exactly
// one row. A unique violation that still slips through (a racer not holding
// this identity's lock) aborts the transaction, so the winning row is
// re-read afterwards and returned as the result.
func (s *Service) GetOrCreate(ctx context.Context, identity string, accountID uuid.UUID, factory Factory) (*Subscription, error) {
	var result *Subscription
	err := s.subs.WithTenantLock(ctx, identity, func(ctx context.Context) error {
		sub, err := s.subs.GetByAccount(ctx, accountID)
		if err == nil {
			result = sub
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		sub, err = factory(ctx)
		if err != nil {
			return err
		}
		if err := sub.Validate(); err != nil {
			return err
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if errors.Is(err, ErrAlreadyExists) {
		return s.subs.GetByAccount(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartTrial returns the account's subscription, starting a trial when none
// exists. The processor customer is minted inside the factory; a processor
// failure degrades to a trial without a customer profile, which the
// conversion sweep skips until a profile exists.
func (s *Service) StartTrial(ctx context.Context, userID string, accountID uuid.UUID, email, name string) (*Subscription, error) {
	return s.GetOrCreate(ctx, userID, accountID, func(ctx context.Context) (*Subscription, error) {
		pl, err := s.plans.GetBySlug(ctx, plan.BasicSlug)
		if err != nil {
			return nil, err
		}

		customerID := ""
		if s.processor != nil {
			customerID, err = s.processor.CreateCustomer(ctx, billing.CreateCustomerParams{
				Email:    email,
				Name:     name,
				UserID:   userID,
				TenantID: accountID.String(),
			})
			if err != nil {
				if !billing.IsProcessorError(err) {
					return nil, err
				}
				s.log.WarnContext(ctx, "starting trial without processor customer",
					"account_id", accountID, "error", err)
				customerID = ""
			}
		}

		return NewTrial(userID, accountID, pl.ID, s.trialDays, customerID), nil
	})
}

// Upgrade moves the account onto the given plan and billing cycle. Any
// existing processor subscription is canceled before the new one is created.
func (s *Service) Upgrade(ctx context.Context, accountID uuid.UUID, planSlug string, yearly bool) (*Subscription, error) {
	sub, err := s.subs.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusCanceled || sub.Status == StatusExpired {
		return nil, fmt.Errorf("%w: cannot upgrade a %s subscription", ErrInvalidTransition, sub.Status)
	}
	if sub.ProcessorCustomerID == "" {
		return nil, ErrNoProcessorCustomer
	}

	pl, err := s.plans.GetBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}

	priceID, err := s.priceFor(ctx, pl, yearly)
	if err != nil {
		return nil, err
	}

	if sub.ProcessorSubscriptionID != "" {
		if err := s.processor.CancelSubscription(ctx, sub.ProcessorSubscriptionID, false); err != nil {
			return nil, err
		}
	}

	ref, err := s.processor.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID: sub.ProcessorCustomerID,
		PriceID:    priceID,
		Metadata: map[string]string{
			"account_id": sub.AccountID.String(),
			"user_id":    sub.UserID,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := sub.Activate(pl.ID, ref.ID, ref.CurrentPeriodStart, ref.CurrentPeriodEnd); err != nil {
		return nil, err
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	rec := NewBillingRecord(sub, pl.PriceFor(yearly), s.currency, BillingSucceeded, ReasonSubscriptionUpdate)
	if err := s.subs.CreateBillingRecord(ctx, rec); err != nil {
		s.log.ErrorContext(ctx, "failed to record billing history", "account_id", accountID, "error", err)
	}

	s.log.InfoContext(ctx, "subscription upgraded",
		"account_id", accountID, "plan", planSlug, "yearly", yearly)
	return sub, nil
}

// Cancel cancels the account's subscription. Canceling an already-canceled
// subscription returns ErrAlreadyCanceled without touching the processor.
func (s *Service) Cancel(ctx context.Context, accountID uuid.UUID, atPeriodEnd bool) (*Subscription, error) {
	sub, err := s.subs.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusCanceled {
		return nil, ErrAlreadyCanceled
	}

	if sub.ProcessorSubscriptionID != "" {
		if err := s.processor.CancelSubscription(ctx, sub.ProcessorSubscriptionID, atPeriodEnd); err != nil {
			return nil, err
		}
	}

	if err := sub.Cancel(s.now(), atPeriodEnd); err != nil {
		return nil, err
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription canceled",
		"account_id", accountID, "at_period_end", atPeriodEnd)
	return sub, nil
}

// ApplyProcessorEvent applies a normalized webhook event to the subscription
// it correlates with. Events for unknown subscriptions are acknowledged and
// dropped; replayed terminal events are idempotent.
func (s *Service) ApplyProcessorEvent(ctx context.Context, evt *billing.Event) error {
	sub, err := s.lookupForEvent(ctx, evt)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.WarnContext(ctx, "processor event for unknown subscription",
				"event", evt.ProviderEvent, "customer_id", evt.CustomerID)
			return nil
		}
		return err
	}

	switch evt.Type {
	case billing.EventPaymentFailed:
		if err := sub.MarkPastDue(); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return nil
			}
			return err
		}
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		return s.recordCycle(ctx, sub, BillingFailed)

	case billing.EventPaymentSucceeded:
		if evt.PeriodStart.IsZero() || sub.IsTrial() {
			return nil
		}
		if err := sub.RefreshPeriod(evt.PeriodStart, evt.PeriodEnd); err != nil {
			return err
		}
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		return s.recordCycle(ctx, sub, BillingSucceeded)

	case billing.EventSubscriptionUpdated:
		if evt.PeriodStart.IsZero() || sub.IsTrial() {
			return nil
		}
		if err := sub.RefreshPeriod(evt.PeriodStart, evt.PeriodEnd); err != nil {
			return err
		}
		return s.subs.Update(ctx, sub)

	case billing.EventSubscriptionDeleted:
		if err := sub.Cancel(s.now(), false); err != nil {
			if errors.Is(err, ErrAlreadyCanceled) {
				return nil
			}
			return err
		}
		return s.subs.Update(ctx, sub)
	}

	return nil
}

func (s *Service) lookupForEvent(ctx context.Context, evt *billing.Event) (*Subscription, error) {
	if evt.SubscriptionID != "" {
		sub, err := s.subs.GetByProcessorSubscription(ctx, evt.SubscriptionID)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return sub, err
		}
	}
	if evt.CustomerID != "" {
		return s.subs.GetByProcessorCustomer(ctx, evt.CustomerID)
	}
	return nil, ErrNotFound
}

func (s *Service) recordCycle(ctx context.Context, sub *Subscription, status BillingStatus) error {
	pl, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	rec := NewBillingRecord(sub, pl.PriceMonthly, s.currency, status, ReasonSubscriptionCycle)
	if err := s.subs.CreateBillingRecord(ctx, rec); err != nil {
		s.log.ErrorContext(ctx, "failed to record billing history",
			"account_id", sub.AccountID, "error", err)
	}
	return nil
}

// priceFor resolves the processor price id for a plan and cycle, lazily
// creating it on the processor and caching it back onto the plan row.
func (s *Service) priceFor(ctx context.Context, pl *plan.Plan, yearly bool) (string, error) {
	cached := pl.ProcessorPriceIDMonthly
	interval := billing.IntervalMonthly
	if yearly {
		cached = pl.ProcessorPriceIDYearly
		interval = billing.IntervalYearly
	}
	if cached != "" {
		return cached, nil
	}

	priceID, err := s.processor.CreatePrice(ctx, billing.CreatePriceParams{
		ProductName: pl.Name,
		Description: pl.Description,
		Amount:      pl.PriceFor(yearly),
		Currency:    s.currency,
		Interval:    interval,
	})
	if err != nil {
		return "", err
	}

	if err := s.plans.CachePriceID(ctx, pl.ID, priceID, yearly); err != nil {
		s.log.WarnContext(ctx, "failed to cache processor price id",
			"plan", pl.Slug, "error", err)
	}
	return priceID, nil
}
