package dto

import (
	"time"

	"payables/internal/core/types"
)

// RecordMovementRequest appends a manual journal entry.
type RecordMovementRequest struct {
	SupplierID    string      `json:"supplierId" binding:"required"`
	MovementType  string      `json:"movementType" binding:"required"`
	Direction     string      `json:"direction" binding:"required"`
	Amount        types.Money `json:"amount" binding:"required"`
	ReferenceType string      `json:"referenceType"`
	ReferenceID   string      `json:"referenceId"`
	Status        string      `json:"status"`
	Description   string      `json:"description"`
	DueDate       *time.Time  `json:"dueDate"`
	PaymentDate   *time.Time  `json:"paymentDate"`
}

// UpdateMovementRequest edits the mutable fields of a journal entry.
type UpdateMovementRequest struct {
	Status      *string    `json:"status"`
	PaymentDate *time.Time `json:"paymentDate"`
	Description *string    `json:"description"`
}

// SetCreditLimitRequest sets the supplier's credit limit.
type SetCreditLimitRequest struct {
	CreditLimit types.Money `json:"creditLimit"`
}

// MovementListQuery filters journal listings.
type MovementListQuery struct {
	ListQuery
	MovementType  string     `form:"movementType"`
	Direction     string     `form:"direction"`
	Status        string     `form:"status"`
	ReferenceType string     `form:"referenceType"`
	DateFrom      *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo        *time.Time `form:"dateTo" time_format:"2006-01-02"`
}
