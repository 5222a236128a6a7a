// Package expense provides supplier expense documents and their invoice link.
package expense

import (
	"context"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
)

// SupplierExpense is a recorded cost item. The supplier is optional; generic
// costs carry none. At most one invoice can back the expense, linked after the
// fact once the invoice arrives.
type SupplierExpense struct {
	ID          id.ID       `db:"id" json:"id"`
	Number      string      `db:"expense_number" json:"expenseNumber"`
	SupplierID  *id.ID      `db:"supplier_id" json:"supplierId,omitempty"`
	InvoiceID   *id.ID      `db:"invoice_id" json:"invoiceId,omitempty"`
	Category    string      `db:"category" json:"category,omitempty"`
	Description string      `db:"description" json:"description"`
	Amount      types.Money `db:"amount" json:"amount"`
	ExpenseDate time.Time   `db:"expense_date" json:"expenseDate"`
	Version     int         `db:"version" json:"version"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
	CreatedBy   string      `db:"created_by" json:"createdBy,omitempty"`
}

// NewSupplierExpense creates an expense document.
func NewSupplierExpense(amount types.Money, expenseDate time.Time) *SupplierExpense {
	now := time.Now().UTC()
	return &SupplierExpense{
		ID:          id.New(),
		Amount:      amount,
		ExpenseDate: expenseDate,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsLinked reports whether an invoice backs the expense.
func (e *SupplierExpense) IsLinked() bool {
	return e.InvoiceID != nil && !id.IsNil(*e.InvoiceID)
}

// Validate implements invariant checks.
func (e *SupplierExpense) Validate(ctx context.Context) error {
	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount")
	}
	if e.ExpenseDate.IsZero() {
		return apperror.NewValidation("expense date is required").
			WithDetail("field", "expenseDate")
	}
	if e.Description == "" {
		return apperror.NewValidation("description is required").
			WithDetail("field", "description")
	}
	return nil
}
