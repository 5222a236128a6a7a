package liability

import (
	"testing"
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
)

func TestDeriveStatus(t *testing.T) {
	today := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	past := today.AddDate(0, 0, -10)
	future := today.AddDate(0, 0, 10)

	tests := []struct {
		name    string
		amount  string
		paid    string
		dueDate time.Time
		want    Status
	}{
		{"unpaid before due date", "1000", "0", future, StatusPending},
		{"unpaid past due date", "1000", "0", past, StatusOverdue},
		{"partially paid", "1000", "400", future, StatusPartialPaid},
		{"partially paid past due date", "1000", "400", past, StatusPartialPaid},
		{"fully paid", "1000", "1000", future, StatusPaid},
		{"overpaid", "1000", "1200", future, StatusPaid},
		{"fully paid past due date", "1000", "1000", past, StatusPaid},
		{"due today is not overdue", "1000", "0", today.Add(-2 * time.Hour), StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(types.MustMoney(tt.amount), types.MustMoney(tt.paid), tt.dueDate, today)
			if got != tt.want {
				t.Errorf("DeriveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyPaidPreservesCancelled(t *testing.T) {
	l := NewAccruedLiability(id.New(), TypeGoods,
		types.MustMoney("500"), time.Now(), time.Now().AddDate(0, 1, 0))
	l.Status = StatusCancelled

	l.ApplyPaid(types.MustMoney("100"), time.Now())

	if l.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", l.Status, StatusCancelled)
	}
	if !l.RemainingAmount.Equal(types.MustMoney("400")) {
		t.Errorf("remaining = %s, want 400", l.RemainingAmount)
	}
}
