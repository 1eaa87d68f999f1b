package invoice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/payflowhq/payflow/pkg/invoice"
)

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		due  time.Time
		want int
	}{
		{"due five days ago", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 5},
		{"due yesterday late evening", time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC), 1},
		{"due today", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), 0},
		{"due in three days", time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC), -3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &invoice.Invoice{DueDate: tc.due}
			assert.Equal(t, tc.want, inv.DaysOverdue(now))
		})
	}
}
