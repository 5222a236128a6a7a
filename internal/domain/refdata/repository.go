package refdata

import (
	"context"

	"payables/internal/core/id"
	"payables/internal/core/types"
)

// Reader provides read-only lookups of externally-owned entities.
// Implementations must return apperror.NewNotFound for missing rows.
type Reader interface {
	FindSupplierByID(ctx context.Context, supplierID id.ID) (*Supplier, error)
	FindPurchaseByID(ctx context.Context, purchaseID id.ID) (*Purchase, error)
	FindPaymentByID(ctx context.Context, paymentID id.ID) (*Payment, error)
	FindProductByID(ctx context.Context, productID id.ID) (*Product, error)
	FindDeliveryNoteByID(ctx context.Context, noteID id.ID) (*DeliveryNote, error)

	// SumOpenCommitments totals still-open commitment-type purchases for a
	// supplier. Feeds the balance aggregator's commitment_balance.
	SumOpenCommitments(ctx context.Context, supplierID id.ID) (types.Money, error)
}
