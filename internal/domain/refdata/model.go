// Package refdata exposes read-only views of entities owned by other services.
// The payables core references suppliers, purchases, payments, products and
// delivery notes for validation and aggregation, but never mutates them.
package refdata

import (
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
)

// PaymentType distinguishes money coming in from money going out.
type PaymentType string

const (
	PaymentInflow  PaymentType = "inflow"
	PaymentOutflow PaymentType = "outflow"
)

// PaymentStatus is the lifecycle status of an external payment record.
type PaymentStatus string

const (
	PaymentDraft     PaymentStatus = "draft"
	PaymentPosted    PaymentStatus = "posted"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is an external payment record. Only posted outflow payments may be
// allocated against liabilities or invoices.
type Payment struct {
	ID          id.ID         `db:"id" json:"id"`
	SupplierID  *id.ID        `db:"supplier_id" json:"supplierId,omitempty"`
	Amount      types.Money   `db:"amount" json:"amount"`
	Type        PaymentType   `db:"type" json:"type"`
	Status      PaymentStatus `db:"status" json:"status"`
	PaymentDate time.Time     `db:"payment_date" json:"paymentDate"`
}

// IsAllocatable reports whether this payment may be allocated to a payable.
func (p *Payment) IsAllocatable() bool {
	return p.Type == PaymentOutflow && p.Status == PaymentPosted
}

// PurchaseStatus is the lifecycle status of a purchase order.
type PurchaseStatus string

const (
	PurchaseOpen      PurchaseStatus = "open"
	PurchaseReceived  PurchaseStatus = "received"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// Purchase is an external purchase order. Purchases flagged as commitment-type
// debt contribute to the supplier's commitment balance until received or
// cancelled.
type Purchase struct {
	ID           id.ID          `db:"id" json:"id"`
	SupplierID   id.ID          `db:"supplier_id" json:"supplierId"`
	TotalAmount  types.Money    `db:"total_amount" json:"totalAmount"`
	Status       PurchaseStatus `db:"status" json:"status"`
	IsCommitment bool           `db:"is_commitment" json:"isCommitment"`
}

// IsOpenCommitment reports whether the purchase still counts toward the
// supplier's commitment balance.
func (p *Purchase) IsOpenCommitment() bool {
	return p.IsCommitment && p.Status == PurchaseOpen
}

// Supplier is an external party record.
type Supplier struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Code string `db:"code" json:"code"`
}

// Product is an external catalog record, referenced by invoice items.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// DeliveryNote is an external goods delivery record, referenced by movements.
type DeliveryNote struct {
	ID         id.ID     `db:"id" json:"id"`
	SupplierID id.ID     `db:"supplier_id" json:"supplierId"`
	Number     string    `db:"number" json:"number"`
	Date       time.Time `db:"date" json:"date"`
}
