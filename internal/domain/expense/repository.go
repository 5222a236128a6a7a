package expense

import (
	"context"
	"time"

	"payables/internal/core/id"
	"payables/internal/domain"
)

// ListFilter narrows expense listings.
type ListFilter struct {
	domain.ListFilter
	SupplierID *id.ID
	InvoiceID  *id.ID
	Category   *string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Repository persists expense documents.
type Repository interface {
	Create(ctx context.Context, exp *SupplierExpense) error
	GetByID(ctx context.Context, expenseID id.ID) (*SupplierExpense, error)
	// GetByIDForUpdate locks the expense row for the current transaction.
	GetByIDForUpdate(ctx context.Context, expenseID id.ID) (*SupplierExpense, error)
	GetByNumber(ctx context.Context, number string) (*SupplierExpense, error)
	Update(ctx context.Context, exp *SupplierExpense) error
	Delete(ctx context.Context, expenseID id.ID) error
	List(ctx context.Context, filter ListFilter) (*domain.ListResult[SupplierExpense], error)
}
