package dto

import (
	"time"

	"payables/internal/core/types"
)

// InvoiceItemRequest describes one invoice line in a request body.
type InvoiceItemRequest struct {
	ProductID    string       `json:"productId"`
	MaterialCode string       `json:"materialCode"`
	Description  string       `json:"description" binding:"required"`
	Quantity     types.Money  `json:"quantity" binding:"required"`
	UnitPrice    types.Money  `json:"unitPrice"`
	UnitCost     *types.Money `json:"unitCost"`
}

// CreateInvoiceRequest creates a supplier invoice.
type CreateInvoiceRequest struct {
	Number      string               `json:"invoiceNumber"`
	SupplierID  string               `json:"supplierId" binding:"required"`
	PurchaseID  string               `json:"purchaseId"`
	InvoiceDate time.Time            `json:"invoiceDate" binding:"required"`
	DueDate     *time.Time           `json:"dueDate"`
	Items       []InvoiceItemRequest `json:"items"`
	TaxAmount   *types.Money         `json:"taxAmount"`
	Notes       string               `json:"notes"`
	Received    bool                 `json:"received"`
}

// UpdateInvoiceRequest edits invoice header fields.
type UpdateInvoiceRequest struct {
	InvoiceDate *time.Time   `json:"invoiceDate"`
	DueDate     *time.Time   `json:"dueDate"`
	TaxAmount   *types.Money `json:"taxAmount"`
	Notes       *string      `json:"notes"`
	Received    *bool        `json:"received"`
}

// InvoiceListQuery filters invoice listings.
type InvoiceListQuery struct {
	ListQuery
	SupplierID    string     `form:"supplierId"`
	PurchaseID    string     `form:"purchaseId"`
	Status        string     `form:"status"`
	PaymentStatus string     `form:"paymentStatus"`
	DateFrom      *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo        *time.Time `form:"dateTo" time_format:"2006-01-02"`
}
