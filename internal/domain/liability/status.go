package liability

import (
	"time"

	"payables/internal/core/types"
)

// DeriveStatus computes the liability status from amounts and dates.
//
// It is a pure function: the status is derived state, not event-sequenced, so
// removing a payment after reaching paid legitimately moves the status
// backward. Cancellation is a direct field edit and is not reachable from
// here.
func DeriveStatus(amount, paid types.Money, dueDate time.Time, today time.Time) Status {
	switch {
	case paid.GreaterThanOrEqual(amount):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartialPaid
	case duePassed(dueDate, today):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// duePassed compares at day granularity: a liability due today is not overdue.
func duePassed(dueDate, today time.Time) bool {
	due := dueDate.Truncate(24 * time.Hour)
	now := today.Truncate(24 * time.Hour)
	return due.Before(now)
}
