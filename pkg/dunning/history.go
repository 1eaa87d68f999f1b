package dunning

import (
	"time"

	"github.com/google/uuid"
)

// History is one sent-reminder row. The unique (invoice_id, rule_id) pair
// backs the at-most-once guarantee; rows are never updated or deleted.
type History struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	InvoiceID uuid.UUID
	RuleID    uuid.UUID
	Channel   Channel
	Recipient string
	SentAt    time.Time
}

// NewHistory builds the record for a reminder that was just dispatched.
func NewHistory(accountID, invoiceID, ruleID uuid.UUID, channel Channel, recipient string) *History {
	return &History{
		ID:        uuid.New(),
		AccountID: accountID,
		InvoiceID: invoiceID,
		RuleID:    ruleID,
		Channel:   channel,
		Recipient: recipient,
		SentAt:    time.Now().UTC(),
	}
}
