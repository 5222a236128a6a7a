package dto

import (
	"time"

	"payables/internal/core/types"
)

// CreateLiabilityRequest creates an accrued liability.
type CreateLiabilityRequest struct {
	SupplierID    string      `json:"supplierId" binding:"required"`
	LiabilityType string      `json:"liabilityType" binding:"required"`
	Amount        types.Money `json:"amount" binding:"required"`
	AccrualDate   time.Time   `json:"accrualDate" binding:"required"`
	DueDate       time.Time   `json:"dueDate" binding:"required"`
	Description   string      `json:"description"`
	Number        string      `json:"liabilityNumber"`
}

// UpdateLiabilityRequest edits liability fields. Nil fields stay unchanged.
type UpdateLiabilityRequest struct {
	LiabilityType *string      `json:"liabilityType"`
	Amount        *types.Money `json:"amount"`
	AccrualDate   *time.Time   `json:"accrualDate"`
	DueDate       *time.Time   `json:"dueDate"`
	Description   *string      `json:"description"`
}

// LinkPaymentRequest allocates part of a payment against a payable document.
type LinkPaymentRequest struct {
	PaymentID string      `json:"paymentId" binding:"required"`
	Amount    types.Money `json:"amount" binding:"required"`
}

// LiabilityListQuery filters liability listings.
type LiabilityListQuery struct {
	ListQuery
	SupplierID    string     `form:"supplierId"`
	Status        string     `form:"status"`
	LiabilityType string     `form:"liabilityType"`
	DueFrom       *time.Time `form:"dueFrom" time_format:"2006-01-02"`
	DueTo         *time.Time `form:"dueTo" time_format:"2006-01-02"`
}
