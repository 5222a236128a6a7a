package invoice

import (
	"context"
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
)

// PaymentLink is one allocation of a payment against an invoice.
type PaymentLink struct {
	ID          id.ID       `db:"id" json:"id"`
	InvoiceID   id.ID       `db:"invoice_id" json:"invoiceId"`
	PaymentID   id.ID       `db:"payment_id" json:"paymentId"`
	Amount      types.Money `db:"amount" json:"amount"`
	PaymentDate time.Time   `db:"payment_date" json:"paymentDate"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	CreatedBy   string      `db:"created_by" json:"createdBy,omitempty"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	domain.ListFilter
	SupplierID    *id.ID
	PurchaseID    *id.ID
	Status        *Status
	PaymentStatus *PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Repository persists invoices, their items and payment allocations.
type Repository interface {
	Create(ctx context.Context, inv *SupplierInvoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*SupplierInvoice, error)
	// GetByIDForUpdate locks the invoice row for the current transaction.
	// Allocation and item mutations run their checks under this lock.
	GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*SupplierInvoice, error)
	GetByNumber(ctx context.Context, number string) (*SupplierInvoice, error)
	Update(ctx context.Context, inv *SupplierInvoice) error
	UpdateStatus(ctx context.Context, invoiceID id.ID, status Status, paymentStatus PaymentStatus) error
	Delete(ctx context.Context, invoiceID id.ID) error
	List(ctx context.Context, filter ListFilter) (*domain.ListResult[SupplierInvoice], error)

	// SaveItems replaces the invoice's item set atomically.
	SaveItems(ctx context.Context, invoiceID id.ID, items []Item) error
	GetItems(ctx context.Context, invoiceID id.ID) ([]Item, error)

	// HasExpenseLink reports whether any expense document references the
	// invoice; such invoices cannot be deleted.
	HasExpenseLink(ctx context.Context, invoiceID id.ID) (bool, error)

	CreateLink(ctx context.Context, link *PaymentLink) error
	DeleteLink(ctx context.Context, invoiceID, paymentID id.ID) error
	// GetLink returns a not-found error when the payment is not allocated
	// to the invoice.
	GetLink(ctx context.Context, invoiceID, paymentID id.ID) (*PaymentLink, error)
	ListLinks(ctx context.Context, invoiceID id.ID) ([]PaymentLink, error)
	SumLinks(ctx context.Context, invoiceID id.ID) (types.Money, error)
}
