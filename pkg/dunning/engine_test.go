package dunning_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/pkg/dunning"
	"github.com/payflowhq/payflow/pkg/invoice"
	"github.com/payflowhq/payflow/pkg/mailer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures every delivered notification.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []dunning.Notification
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, msg dunning.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) delivered() []dunning.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dunning.Notification(nil), n.sent...)
}

func rule(accountID uuid.UUID, offsetDays int) *dunning.Rule {
	return &dunning.Rule{
		ID:         uuid.New(),
		AccountID:  accountID,
		Name:       "reminder",
		OffsetDays: offsetDays,
		Channel:    dunning.ChannelEmail,
		Subject:    "Invoice {invoice_number} is {days_overdue} days overdue",
		Template:   "Hi {customer_name}, please settle {amount} {currency}.",
		IsActive:   true,
	}
}

func overdueInvoice(accountID uuid.UUID, now time.Time, daysOverdue int) *invoice.Overdue {
	return &invoice.Overdue{
		Invoice: invoice.Invoice{
			ID:        uuid.New(),
			AccountID: accountID,
			Number:    "INV-0042",
			Status:    invoice.StatusOverdue,
			Amount:    decimal.RequireFromString("125.50"),
			Currency:  "eur",
			DueDate:   now.AddDate(0, 0, -daysOverdue),
		},
		CustomerName:  "Acme GmbH",
		CustomerEmail: "billing@acme.example",
	}
}

func TestEngineExactDayMatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	r := rule(accountID, 5)

	tests := []struct {
		name        string
		daysOverdue int
		wantSent    int
	}{
		{"fires exactly on the offset day", 5, 1},
		{"one day early", 4, 0},
		{"one day late is skipped forever", 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, tt.daysOverdue))
			notifier := &recordingNotifier{}
			engine := dunning.NewEngine(dunning.NewMemoryStore(r), invoices, dunning.NewMemoryStore(), notifier,
				dunning.WithEngineClock(func() time.Time { return now }))

			report, err := engine.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, report.Sent)
			assert.Len(t, notifier.delivered(), tt.wantSent)
		})
	}
}

func TestEngineAtMostOncePerPair(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 7))
	history := dunning.NewMemoryStore()
	notifier := &recordingNotifier{}
	engine := dunning.NewEngine(dunning.NewMemoryStore(rule(accountID, 7)), invoices, history, notifier,
		dunning.WithEngineClock(func() time.Time { return now }))

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped, "re-running on the same day must not re-send")

	assert.Len(t, notifier.delivered(), 1)
	assert.Len(t, history.History(), 1)
}

func TestEngineScopesRulesToAccount(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountA := uuid.New()
	accountB := uuid.New()

	// same offset, but the rule belongs to a different account
	invoices := invoice.NewMemoryStore(overdueInvoice(accountA, now, 5))
	notifier := &recordingNotifier{}
	engine := dunning.NewEngine(dunning.NewMemoryStore(rule(accountB, 5)), invoices, dunning.NewMemoryStore(), notifier,
		dunning.WithEngineClock(func() time.Time { return now }))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Matched, "rules never cross tenant boundaries")
	assert.Empty(t, notifier.delivered())
}

func TestEngineDeliveryFailureDoesNotRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 3))
	history := dunning.NewMemoryStore()
	notifier := &recordingNotifier{fail: true}
	engine := dunning.NewEngine(dunning.NewMemoryStore(rule(accountID, 3)), invoices, history, notifier,
		dunning.WithEngineClock(func() time.Time { return now }))

	report, err := engine.Run(context.Background())
	require.NoError(t, err, "per-pair failures never abort the sweep")
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, history.History(), "a failed send leaves no history row")

	// delivery recovered: the pair is retried on the same day
	notifier.fail = false
	report, err = engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

// capturingSender records outbound mail instead of delivering it.
type capturingSender struct {
	mu   sync.Mutex
	sent []mailer.SendEmailParams
}

func (s *capturingSender) SendEmail(_ context.Context, p mailer.SendEmailParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, p)
	return nil
}

func TestEngineSMSOnlyChannelLeavesNoHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	smsRule := rule(accountID, 5)
	smsRule.Channel = dunning.ChannelSMS

	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 5))
	history := dunning.NewMemoryStore()
	sender := &capturingSender{}
	engine := dunning.NewEngine(dunning.NewMemoryStore(smsRule), invoices, history,
		dunning.NewEmailNotifier(sender, discardLogger()),
		dunning.WithEngineClock(func() time.Time { return now }))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 0, report.Sent, "an undeliverable channel must not count as sent")
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, sender.sent)
	assert.Empty(t, history.History(), "no delivery means no audit row")
}

func TestEngineBothChannelStillSendsEmailLeg(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	bothRule := rule(accountID, 5)
	bothRule.Channel = dunning.ChannelBoth

	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 5))
	history := dunning.NewMemoryStore()
	sender := &capturingSender{}
	engine := dunning.NewEngine(dunning.NewMemoryStore(bothRule), invoices, history,
		dunning.NewEmailNotifier(sender, discardLogger()),
		dunning.WithEngineClock(func() time.Time { return now }))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "billing@acme.example", sender.sent[0].SendTo)
	assert.Len(t, history.History(), 1)
}

func TestEngineMultipleRulesPerInvoice(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	rules := dunning.NewMemoryStore(rule(accountID, 3), rule(accountID, 7), rule(accountID, 14))
	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 7))
	notifier := &recordingNotifier{}
	engine := dunning.NewEngine(rules, invoices, dunning.NewMemoryStore(), notifier,
		dunning.WithEngineClock(func() time.Time { return now }))

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched, "only the offset matching today's overdue count fires")
	assert.Equal(t, 1, report.Sent)
}

func TestEngineRendersTemplates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	accountID := uuid.New()
	invoices := invoice.NewMemoryStore(overdueInvoice(accountID, now, 5))
	notifier := &recordingNotifier{}
	engine := dunning.NewEngine(dunning.NewMemoryStore(rule(accountID, 5)), invoices, dunning.NewMemoryStore(), notifier,
		dunning.WithEngineClock(func() time.Time { return now }))

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	sent := notifier.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, "Invoice INV-0042 is 5 days overdue", sent[0].Subject)
	assert.Equal(t, "Hi Acme GmbH, please settle 125.50 EUR.", sent[0].Message)
	assert.Equal(t, "billing@acme.example", sent[0].Email)
}

func TestRuleValidate(t *testing.T) {
	t.Parallel()

	r := rule(uuid.New(), 5)
	require.NoError(t, r.Validate())

	r.Name = "  "
	assert.ErrorIs(t, r.Validate(), dunning.ErrEmptyRuleName)

	r = rule(uuid.New(), 5)
	r.Channel = "pigeon"
	assert.ErrorIs(t, r.Validate(), dunning.ErrInvalidChannel)

	r = rule(uuid.New(), 5)
	r.Template = "  "
	assert.ErrorIs(t, r.Validate(), dunning.ErrEmptyTemplate)
}

func TestRuleMatchesInactive(t *testing.T) {
	t.Parallel()

	r := rule(uuid.New(), 5)
	r.IsActive = false
	assert.False(t, r.Matches(5))
}
