package invoice

import (
	"time"

	"payables/internal/core/types"
)

// DeriveStatus maps allocated payments onto the document status. Draft is
// preserved until the first payment lands; overdue never appears here.
func DeriveStatus(current Status, total, paid types.Money) Status {
	if current == StatusCancelled {
		return StatusCancelled
	}

	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartialPaid
	case current == StatusDraft:
		return StatusDraft
	default:
		return StatusReceived
	}
}

// DerivePaymentStatus derives the settlement status. Overdue applies only
// when unpaid or partially paid and the due date has passed; a fully paid
// invoice is never overdue. The due date itself is not overdue.
func DerivePaymentStatus(total, paid types.Money, dueDate *time.Time, today time.Time) PaymentStatus {
	if total.IsPositive() && paid.GreaterThanOrEqual(total) {
		return PaymentPaid
	}

	if dueDate != nil {
		due := dueDate.Truncate(24 * time.Hour)
		day := today.Truncate(24 * time.Hour)
		if day.After(due) {
			return PaymentOverdue
		}
	}

	if paid.IsPositive() {
		return PaymentPartial
	}
	return PaymentPending
}
