package dto

import (
	"time"

	"payables/internal/core/types"
)

// CreateExpenseRequest creates a supplier expense.
type CreateExpenseRequest struct {
	Number      string      `json:"expenseNumber"`
	SupplierID  string      `json:"supplierId"`
	Category    string      `json:"category" binding:"required"`
	Description string      `json:"description" binding:"required"`
	Amount      types.Money `json:"amount" binding:"required"`
	ExpenseDate time.Time   `json:"expenseDate" binding:"required"`
}

// UpdateExpenseRequest edits expense fields. Nil fields stay unchanged.
type UpdateExpenseRequest struct {
	Category    *string      `json:"category"`
	Description *string      `json:"description"`
	Amount      *types.Money `json:"amount"`
	ExpenseDate *time.Time   `json:"expenseDate"`
}

// LinkInvoiceRequest ties an expense to a supplier invoice.
type LinkInvoiceRequest struct {
	InvoiceID string `json:"invoiceId" binding:"required"`
}

// ExpenseListQuery filters expense listings.
type ExpenseListQuery struct {
	ListQuery
	SupplierID string     `form:"supplierId"`
	InvoiceID  string     `form:"invoiceId"`
	Category   string     `form:"category"`
	DateFrom   *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"dateTo" time_format:"2006-01-02"`
}
