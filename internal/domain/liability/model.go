// Package liability provides accrued liabilities: obligations recognized
// before an invoice exists, paid down through explicit payment allocations.
package liability

import (
	"context"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
)

// Status is the liability lifecycle status. paid and cancelled are terminal
// for direct edits; payment changes always re-derive from amounts.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPartialPaid Status = "partial_paid"
	StatusPaid        Status = "paid"
	StatusOverdue     Status = "overdue"
	StatusCancelled   Status = "cancelled"
)

// LiabilityType classifies what the obligation is for.
type LiabilityType string

const (
	TypeGoods    LiabilityType = "goods"
	TypeServices LiabilityType = "services"
	TypeTaxes    LiabilityType = "taxes"
	TypeOther    LiabilityType = "other"
)

// AccruedLiability is a recognized obligation to pay a supplier.
// PaidAmount and RemainingAmount are derived from the allocation rows on
// every read; they are never stored.
type AccruedLiability struct {
	ID          id.ID         `db:"id" json:"id"`
	Number      string        `db:"liability_number" json:"liabilityNumber"`
	SupplierID  id.ID         `db:"supplier_id" json:"supplierId"`
	Type        LiabilityType `db:"liability_type" json:"liabilityType"`
	Amount      types.Money   `db:"amount" json:"amount"`
	AccrualDate time.Time     `db:"accrual_date" json:"accrualDate"`
	DueDate     time.Time     `db:"due_date" json:"dueDate"`
	Status      Status        `db:"status" json:"status"`
	Description string        `db:"description" json:"description,omitempty"`
	Version     int           `db:"version" json:"version"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
	CreatedBy   string        `db:"created_by" json:"createdBy,omitempty"`

	PaidAmount      types.Money `db:"-" json:"paidAmount"`
	RemainingAmount types.Money `db:"-" json:"remainingAmount"`
}

// NewAccruedLiability creates a liability document with derived initial status.
func NewAccruedLiability(supplierID id.ID, liabilityType LiabilityType, amount types.Money, accrualDate, dueDate time.Time) *AccruedLiability {
	now := time.Now().UTC()
	l := &AccruedLiability{
		ID:          id.New(),
		SupplierID:  supplierID,
		Type:        liabilityType,
		Amount:      amount,
		AccrualDate: accrualDate,
		DueDate:     dueDate,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.ApplyPaid(types.Zero(), now)
	return l
}

// ApplyPaid sets the derived amounts and re-derives the status.
// Cancelled liabilities keep their status regardless of payments.
func (l *AccruedLiability) ApplyPaid(paid types.Money, today time.Time) {
	l.PaidAmount = paid
	l.RemainingAmount = l.Amount.Sub(paid)
	if l.Status != StatusCancelled {
		l.Status = DeriveStatus(l.Amount, paid, l.DueDate, today)
	}
}

// Validate implements invariant checks.
func (l *AccruedLiability) Validate(ctx context.Context) error {
	if id.IsNil(l.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}

	switch l.Type {
	case TypeGoods, TypeServices, TypeTaxes, TypeOther:
	default:
		return apperror.NewValidation("unknown liability type").
			WithDetail("field", "liabilityType").
			WithDetail("value", string(l.Type))
	}

	if !l.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount")
	}

	if l.AccrualDate.IsZero() || l.DueDate.IsZero() {
		return apperror.NewValidation("accrual and due dates are required").
			WithDetail("field", "accrualDate")
	}

	if l.DueDate.Before(l.AccrualDate) {
		return apperror.NewValidation("due date must not precede accrual date").
			WithDetail("field", "dueDate")
	}

	return nil
}

// PaymentLink allocates part of an external payment against this liability.
// Rows are created and destroyed through the allocation flow, never updated.
type PaymentLink struct {
	ID          id.ID       `db:"id" json:"id"`
	LiabilityID id.ID       `db:"liability_id" json:"liabilityId"`
	PaymentID   id.ID       `db:"payment_id" json:"paymentId"`
	Amount      types.Money `db:"amount" json:"amount"`
	PaymentDate time.Time   `db:"payment_date" json:"paymentDate"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	CreatedBy   string      `db:"created_by" json:"createdBy,omitempty"`
}
