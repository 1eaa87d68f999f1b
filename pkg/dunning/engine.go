package dunning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/invoice"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

const sweepLockIdentity = "sweep:dunning"

// Report summarizes one dunning sweep run.
type Report struct {
	Invoices       int  `json:"invoices"` // overdue invoices considered
	Matched        int  `json:"matched"`  // (invoice, rule) pairs whose offset matched today
	Sent           int  `json:"sent"`
	Skipped        int  `json:"skipped"` // already sent, or channel without a provider
	Failed         int  `json:"failed"`
	SkippedOverlap bool `json:"skipped_overlap"` // another run still held the sweep lock
}

// Engine runs the dunning sweep: every overdue invoice is matched against
// its account's active rules by exact day offset, and each matching pair is
// delivered at most once, ever.
type Engine struct {
	rules    RuleStore
	invoices invoice.Store
	history  HistoryStore
	notifier Notifier
	guard    tenantlock.Locker
	log      *slog.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineGuard installs a cross-process lock so overlapping sweep runs
// short-circuit.
func WithEngineGuard(guard tenantlock.Locker) EngineOption {
	return func(e *Engine) { e.guard = guard }
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithEngineClock overrides the time source, for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a dunning engine.
func NewEngine(rules RuleStore, invoices invoice.Store, history HistoryStore, notifier Notifier, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:    rules,
		invoices: invoices,
		history:  history,
		notifier: notifier,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one sweep pass. Failures on individual pairs are counted and
// logged without aborting the batch. Delivery happens before recording, so a
// crash between the two can re-send once on the next run; recording before
// delivery would instead silently drop reminders, which is worse for a
// collections flow.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	if e.guard != nil {
		release, ok, err := e.guard.TryAcquire(ctx, sweepLockIdentity)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			e.log.InfoContext(ctx, "dunning sweep skipped, previous run still active")
			return Report{SkippedOverlap: true}, nil
		}
		defer release()
	}

	now := e.now().UTC()

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return Report{}, err
	}
	byAccount := make(map[uuid.UUID][]*Rule, len(rules))
	for _, r := range rules {
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r)
	}

	overdue, err := e.invoices.ListOverdue(ctx, now)
	if err != nil {
		return Report{}, err
	}

	report := Report{Invoices: len(overdue)}
	for _, inv := range overdue {
		days := inv.DaysOverdue(now)
		for _, rule := range byAccount[inv.AccountID] {
			if !rule.Matches(days) {
				continue
			}
			report.Matched++
			e.process(ctx, inv, rule, days, &report)
		}
	}

	e.log.InfoContext(ctx, "dunning sweep finished",
		"invoices", report.Invoices, "matched", report.Matched,
		"sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (e *Engine) process(ctx context.Context, inv *invoice.Overdue, rule *Rule, days int, report *Report) {
	sent, err := e.history.Exists(ctx, inv.ID, rule.ID)
	if err != nil {
		report.Failed++
		e.log.ErrorContext(ctx, "dunning history lookup failed",
			"invoice_id", inv.ID, "rule_id", rule.ID, "error", err)
		return
	}
	if sent {
		report.Skipped++
		return
	}

	subject, message := rule.Render(inv, days)
	err = e.notifier.Send(ctx, Notification{
		Channel: rule.Channel,
		Email:   inv.CustomerEmail,
		Phone:   inv.CustomerPhone,
		Subject: subject,
		Message: message,
	})
	if err != nil {
		if errors.Is(err, ErrDeliverySkipped) {
			// Nothing went out, so no history row either; the pair stays
			// eligible once the channel gains a provider.
			report.Skipped++
			e.log.InfoContext(ctx, "dunning reminder skipped, channel not available",
				"invoice_id", inv.ID, "rule_id", rule.ID, "channel", rule.Channel)
			return
		}
		report.Failed++
		e.log.ErrorContext(ctx, "dunning reminder delivery failed",
			"invoice_id", inv.ID, "rule_id", rule.ID, "channel", rule.Channel, "error", err)
		return
	}

	h := NewHistory(inv.AccountID, inv.ID, rule.ID, rule.Channel, inv.CustomerEmail)
	if err := e.history.Record(ctx, h); err != nil {
		if errors.Is(err, ErrAlreadySent) {
			report.Skipped++
			return
		}
		// The reminder went out but the record did not stick; the next run
		// may send it once more.
		report.Failed++
		e.log.ErrorContext(ctx, "dunning reminder sent but not recorded",
			"invoice_id", inv.ID, "rule_id", rule.ID, "error", err)
		return
	}

	report.Sent++
	e.log.InfoContext(ctx, "dunning reminder sent",
		"invoice_id", inv.ID, "rule_id", rule.ID,
		"channel", rule.Channel, "days_overdue", days)
}
