package dunning

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/pkg/invoice"
)

// Channel is the delivery channel of a dunning reminder.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelBoth  Channel = "both"
)

func (c Channel) valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelBoth:
		return true
	}
	return false
}

// Rule is an account-scoped dunning step. OffsetDays is relative to the
// invoice due date and may be negative for pre-due reminders: -3 fires three
// days before the due date, 0 on the due date, 7 a week after.
type Rule struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Name       string
	OffsetDays int
	Channel    Channel
	Subject    string
	Template   string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the rule is well-formed.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRuleName
	}
	if !r.Channel.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, r.Channel)
	}
	if strings.TrimSpace(r.Template) == "" {
		return ErrEmptyTemplate
	}
	return nil
}

// Matches reports whether the rule fires for an invoice that is exactly
// daysOverdue days past due. Matching is exact by day: a rule missed on its
// day is never sent late.
func (r *Rule) Matches(daysOverdue int) bool {
	return r.IsActive && daysOverdue == r.OffsetDays
}

// Render fills the rule's subject and message templates from the invoice.
// Supported placeholders: {customer_name}, {invoice_number}, {amount},
// {currency}, {days_overdue}, {due_date}.
func (r *Rule) Render(inv *invoice.Overdue, daysOverdue int) (subject, message string) {
	replacer := strings.NewReplacer(
		"{customer_name}", inv.CustomerName,
		"{invoice_number}", inv.Number,
		"{amount}", inv.Amount.StringFixed(2),
		"{currency}", strings.ToUpper(inv.Currency),
		"{days_overdue}", strconv.Itoa(daysOverdue),
		"{due_date}", inv.DueDate.UTC().Format("2006-01-02"),
	)

	subject = replacer.Replace(r.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Payment reminder for invoice %s", inv.Number)
	}
	message = replacer.Replace(r.Template)
	if message == "" {
		message = fmt.Sprintf("Invoice %s for %s %s is %d day(s) overdue.",
			inv.Number, inv.Amount.StringFixed(2), strings.ToUpper(inv.Currency), daysOverdue)
	}
	return subject, message
}
