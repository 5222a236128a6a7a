package ledger

import (
	"context"
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
)

// Repository defines persistence operations for accounts and movements.
type Repository interface {
	// Account operations

	// GetAccountBySupplier returns the supplier's account or NotFound.
	GetAccountBySupplier(ctx context.Context, supplierID id.ID) (*SupplierAccount, error)

	// GetAccountByID returns an account by primary key.
	GetAccountByID(ctx context.Context, accountID id.ID) (*SupplierAccount, error)

	// GetAccountBySupplierForUpdate returns the account with a row lock.
	// Must be called inside a transaction; serializes all balance writers.
	GetAccountBySupplierForUpdate(ctx context.Context, supplierID id.ID) (*SupplierAccount, error)

	// CreateAccount inserts a new account row.
	CreateAccount(ctx context.Context, account *SupplierAccount) error

	// UpdateAccountBalances persists commitment/debt/total atomically.
	// Only the aggregator may call this.
	UpdateAccountBalances(ctx context.Context, account *SupplierAccount) error

	// UpdateCreditLimit persists a credit limit edit.
	UpdateCreditLimit(ctx context.Context, accountID id.ID, limit types.Money) error

	// Movement operations

	CreateMovement(ctx context.Context, movement *Movement) error
	GetMovementByID(ctx context.Context, movementID id.ID) (*Movement, error)

	// UpdateMovement persists only the editable fields
	// (status, payment_date, description).
	UpdateMovement(ctx context.Context, movement *Movement) error

	DeleteMovement(ctx context.Context, movementID id.ID) error

	// DeleteMovementsByReference removes journal entries that point at a
	// source document being deleted.
	DeleteMovementsByReference(ctx context.Context, kind RefKind, refID id.ID) error

	ListMovements(ctx context.Context, accountID id.ID, filter MovementFilter) (domain.ListResult[*Movement], error)

	// Aggregation inputs

	// SumInvoiceDebt totals (total_amount - allocated payments) over
	// non-cancelled, not-fully-paid invoices of the supplier.
	SumInvoiceDebt(ctx context.Context, supplierID id.ID) (types.Money, error)

	// InvoiceExists checks an invoice reference without loading the document.
	InvoiceExists(ctx context.Context, invoiceID id.ID) (bool, error)
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	domain.ListFilter

	Type      *MovementType
	Direction *Direction
	Status    *MovementStatus
	RefKind   *RefKind
	DateFrom  *time.Time
	DateTo    *time.Time
}
