// Package invoice exposes the read side of invoices the billing core
// consumes. Invoice authoring, numbering and delivery live elsewhere;
// the dunning engine only needs overdue invoices joined with the customer
// contact they should be chased at.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Invoice is one receivable row.
type Invoice struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	CustomerID uuid.UUID
	Number     string
	Status     Status
	Amount     decimal.Decimal
	Currency   string
	DueDate    time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DaysOverdue returns whole days elapsed since the due date, comparing
// calendar days in UTC. Negative values mean the due date is in the future.
func (i *Invoice) DaysOverdue(now time.Time) int {
	due := i.DueDate.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	return int(today.Sub(due).Hours() / 24)
}

// Overdue pairs an invoice with the customer contact dunning reminders go to.
type Overdue struct {
	Invoice
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}
