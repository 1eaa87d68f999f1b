package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

const sweepLockIdentity = "sweep:trial-conversion"

// Report summarizes one conversion sweep run.
type Report struct {
	Selected  int  `json:"selected"`
	Converted int  `json:"converted"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"` // another run still held the sweep lock
}

// Converter runs the trial conversion sweep: expired trials with a processor
// customer are moved onto paid billing; each failure isolates to its own row.
type Converter struct {
	subs      Store
	plans     plan.Store
	processor billing.Processor
	guard     tenantlock.Locker
	log       *slog.Logger
	currency  string
	now       func() time.Time
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithSweepGuard installs a cross-process lock so overlapping sweep runs
// short-circuit instead of double-charging.
func WithSweepGuard(guard tenantlock.Locker) ConverterOption {
	return func(c *Converter) { c.guard = guard }
}

// WithConverterLogger sets the converter logger.
func WithConverterLogger(log *slog.Logger) ConverterOption {
	return func(c *Converter) { c.log = log }
}

// WithConverterClock overrides the time source, for tests.
func WithConverterClock(now func() time.Time) ConverterOption {
	return func(c *Converter) { c.now = now }
}

// NewConverter creates a trial conversion sweep.
func NewConverter(subs Store, plans plan.Store, processor billing.Processor, opts ...ConverterOption) *Converter {
	c := &Converter{
		subs:      subs,
		plans:     plans,
		processor: processor,
		log:       slog.Default(),
		currency:  "eur",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one sweep pass. Selection and conversion errors on individual
// subscriptions are counted and logged, never aborting the rest of the batch;
// only selection itself failing returns an error.
func (c *Converter) Run(ctx context.Context) (Report, error) {
	if c.guard != nil {
		release, ok, err := c.guard.TryAcquire(ctx, sweepLockIdentity)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			c.log.InfoContext(ctx, "trial conversion sweep skipped, previous run still active")
			return Report{Skipped: true}, nil
		}
		defer release()
	}

	now := c.now().UTC()
	expired, err := c.subs.ListExpiredTrials(ctx, now)
	if err != nil {
		return Report{}, err
	}

	report := Report{Selected: len(expired)}
	for _, sub := range expired {
		if err := c.convertOne(ctx, sub, now); err != nil {
			report.Failed++
			c.log.ErrorContext(ctx, "trial conversion failed",
				"account_id", sub.AccountID, "subscription_id", sub.ID, "error", err)
			continue
		}
		report.Converted++
	}

	c.log.InfoContext(ctx, "trial conversion sweep finished",
		"selected", report.Selected, "converted", report.Converted, "failed", report.Failed)
	return report, nil
}

// convertOne converts a single expired trial. The billing anchor is the
// moment the trial actually ended, so a sweep running late back-dates the
// first charge instead of granting free days.
func (c *Converter) convertOne(ctx context.Context, sub *Subscription, now time.Time) error {
	pl, err := c.plans.GetBySlug(ctx, plan.BasicSlug)
	if err != nil {
		return err
	}

	priceID := pl.ProcessorPriceIDMonthly
	if priceID == "" {
		priceID, err = c.processor.CreatePrice(ctx, billing.CreatePriceParams{
			ProductName: pl.Name,
			Description: pl.Description,
			Amount:      pl.PriceMonthly,
			Currency:    c.currency,
			Interval:    billing.IntervalMonthly,
		})
		if err != nil {
			return c.markFailed(ctx, sub, err)
		}
		if err := c.plans.CachePriceID(ctx, pl.ID, priceID, false); err != nil {
			c.log.WarnContext(ctx, "failed to cache processor price id",
				"plan", pl.Slug, "error", err)
		}
	}

	anchor := now
	if sub.TrialEndDate != nil && sub.TrialEndDate.UTC().Before(now) {
		anchor = sub.TrialEndDate.UTC()
	}

	ref, err := c.processor.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID:         sub.ProcessorCustomerID,
		PriceID:            priceID,
		BillingCycleAnchor: anchor,
		Metadata: map[string]string{
			"account_id": sub.AccountID.String(),
			"user_id":    sub.UserID,
			"reason":     "trial_conversion",
		},
	})
	if err != nil {
		return c.markFailed(ctx, sub, err)
	}

	if err := sub.Activate(pl.ID, ref.ID, ref.CurrentPeriodStart, ref.CurrentPeriodEnd); err != nil {
		return err
	}
	if err := c.subs.Update(ctx, sub); err != nil {
		return err
	}

	rec := NewBillingRecord(sub, pl.PriceMonthly, c.currency, BillingSucceeded, ReasonSubscriptionCreate)
	if err := c.subs.CreateBillingRecord(ctx, rec); err != nil {
		c.log.ErrorContext(ctx, "failed to record billing history",
			"account_id", sub.AccountID, "error", err)
	}

	c.log.InfoContext(ctx, "trial converted to paid",
		"account_id", sub.AccountID, "subscription_id", sub.ID, "anchor", anchor)
	return nil
}

// markFailed downgrades the trial to past_due after a processor failure and
// reports the original error. Persistence failures while downgrading are
// joined in rather than swallowed.
func (c *Converter) markFailed(ctx context.Context, sub *Subscription, cause error) error {
	if !billing.IsProcessorError(cause) {
		return cause
	}
	if err := sub.MarkPastDue(); err != nil {
		return errors.Join(cause, err)
	}
	if err := c.subs.Update(ctx, sub); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// ExpiringSoon lists trials ending within the next days, for reminder
// notifications.
func (c *Converter) ExpiringSoon(ctx context.Context, days int) ([]*Subscription, error) {
	return c.subs.ListTrialsEndingWithin(ctx, c.now(), days)
}
