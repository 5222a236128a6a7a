// Package allocation holds the shared rules for linking an external payment
// to a payable document (accrued liability or supplier invoice).
//
// The checks are pure: callers load the payment and the locked target inside
// their transaction and validate before any write, so a rejected allocation
// leaves no partial state behind.
package allocation

import (
	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain/refdata"
)

// Request describes a proposed allocation against a target document.
type Request struct {
	// TargetID is the liability or invoice being paid down.
	TargetID id.ID

	// Remaining is the target's remaining amount under row lock.
	Remaining types.Money

	// Amount is the portion of the payment to allocate.
	Amount types.Money

	// AlreadyLinked is true when the (target, payment) pair exists.
	AlreadyLinked bool
}

// Validate applies every allocation precondition in order, returning the
// first violation. No writes may happen before this passes.
func Validate(payment *refdata.Payment, req Request) error {
	if payment.Type != refdata.PaymentOutflow {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"only outflow payments can be allocated to a payable").
			WithDetail("payment_id", payment.ID.String()).
			WithDetail("type", string(payment.Type))
	}

	if payment.Status != refdata.PaymentPosted {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"payment must be posted before allocation").
			WithDetail("payment_id", payment.ID.String()).
			WithDetail("status", string(payment.Status))
	}

	if !req.Amount.IsPositive() {
		return apperror.NewValidation("allocation amount must be positive").
			WithDetail("field", "amount")
	}

	if req.Amount.GreaterThan(payment.Amount) {
		return apperror.NewOverAllocation(req.TargetID.String(),
			req.Amount.String(), payment.Amount.String()).
			WithDetail("limit", "payment_amount")
	}

	if req.Amount.GreaterThan(req.Remaining) {
		return apperror.NewOverAllocation(req.TargetID.String(),
			req.Amount.String(), req.Remaining.String()).
			WithDetail("limit", "remaining_amount")
	}

	if req.AlreadyLinked {
		return apperror.NewDuplicate("allocation", "payment",
			payment.ID.String())
	}

	return nil
}
