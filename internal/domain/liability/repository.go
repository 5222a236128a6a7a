package liability

import (
	"context"
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
)

// Repository defines persistence for liabilities and their allocation rows.
type Repository interface {
	Create(ctx context.Context, l *AccruedLiability) error
	GetByID(ctx context.Context, liabilityID id.ID) (*AccruedLiability, error)

	// GetByIDForUpdate loads the liability with a row lock. The allocation
	// check-then-insert sequence holds this lock for its whole duration.
	GetByIDForUpdate(ctx context.Context, liabilityID id.ID) (*AccruedLiability, error)

	GetByNumber(ctx context.Context, number string) (*AccruedLiability, error)
	Update(ctx context.Context, l *AccruedLiability) error
	UpdateStatus(ctx context.Context, liabilityID id.ID, status Status) error
	Delete(ctx context.Context, liabilityID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*AccruedLiability], error)

	// Allocation rows

	CreateLink(ctx context.Context, link *PaymentLink) error
	DeleteLink(ctx context.Context, liabilityID, paymentID id.ID) error

	// GetLink returns NotFound when the pair is not linked.
	GetLink(ctx context.Context, liabilityID, paymentID id.ID) (*PaymentLink, error)

	ListLinks(ctx context.Context, liabilityID id.ID) ([]PaymentLink, error)

	// SumLinks totals the allocated amounts for a liability.
	SumLinks(ctx context.Context, liabilityID id.ID) (types.Money, error)
}

// ListFilter narrows liability listings.
type ListFilter struct {
	domain.ListFilter

	SupplierID *id.ID
	Status     *Status
	Type       *LiabilityType
	DueFrom    *time.Time
	DueTo      *time.Time
}
