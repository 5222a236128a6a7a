// Package invoice provides supplier invoices with line items, derived totals
// and payment allocation.
package invoice

import (
	"context"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
)

// Status is the document lifecycle status, independent of payment_status.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusReceived    Status = "received"
	StatusPartialPaid Status = "partial_paid"
	StatusPaid        Status = "paid"
	StatusCancelled   Status = "cancelled"
)

// PaymentStatus tracks settlement separately; overdue lives only here.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// SupplierInvoice is a received supplier invoice. Totals are derived from the
// items; paid/remaining are derived from the allocation rows on every read.
type SupplierInvoice struct {
	ID          id.ID      `db:"id" json:"id"`
	Number      string     `db:"invoice_number" json:"invoiceNumber"`
	SupplierID  id.ID      `db:"supplier_id" json:"supplierId"`
	PurchaseID  *id.ID     `db:"purchase_id" json:"purchaseId,omitempty"`
	InvoiceDate time.Time  `db:"invoice_date" json:"invoiceDate"`
	DueDate     *time.Time `db:"due_date" json:"dueDate,omitempty"`

	Subtotal  types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount types.Money `db:"tax_amount" json:"taxAmount"`
	// TaxSet records whether the caller supplied an explicit tax amount;
	// when false, tax defaults to 21% of the subtotal on every recompute.
	TaxSet      bool        `db:"tax_set" json:"-"`
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	Status        Status        `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	Notes         string        `db:"notes" json:"notes,omitempty"`
	Version       int           `db:"version" json:"version"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
	CreatedBy     string        `db:"created_by" json:"createdBy,omitempty"`

	Items []Item `db:"-" json:"items"`

	PaidAmount      types.Money `db:"-" json:"paidAmount"`
	RemainingAmount types.Money `db:"-" json:"remainingAmount"`
}

// Item is one invoice line. TotalPrice is always quantity x unit price.
type Item struct {
	ID           id.ID        `db:"id" json:"id"`
	InvoiceID    id.ID        `db:"invoice_id" json:"invoiceId"`
	LineNo       int          `db:"line_no" json:"lineNo"`
	ProductID    *id.ID       `db:"product_id" json:"productId,omitempty"`
	MaterialCode string       `db:"material_code" json:"materialCode,omitempty"`
	Description  string       `db:"description" json:"description"`
	Quantity     types.Money  `db:"quantity" json:"quantity"`
	UnitPrice    types.Money  `db:"unit_price" json:"unitPrice"`
	UnitCost     *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	TotalPrice   types.Money  `db:"total_price" json:"totalPrice"`
}

// NewSupplierInvoice creates an invoice document in draft.
func NewSupplierInvoice(supplierID id.ID, invoiceDate time.Time) *SupplierInvoice {
	now := time.Now().UTC()
	return &SupplierInvoice{
		ID:            id.New(),
		SupplierID:    supplierID,
		InvoiceDate:   invoiceDate,
		Subtotal:      types.Zero(),
		TaxAmount:     types.Zero(),
		TotalAmount:   types.Zero(),
		Status:        StatusDraft,
		PaymentStatus: PaymentPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         make([]Item, 0),
	}
}

// AddItem appends a line and recalculates totals.
func (inv *SupplierInvoice) AddItem(item Item) {
	item.ID = id.New()
	item.InvoiceID = inv.ID
	item.LineNo = len(inv.Items) + 1
	item.TotalPrice = item.Quantity.Mul(item.UnitPrice)
	inv.Items = append(inv.Items, item)
	inv.RecalculateTotals()
}

// SetTax records an explicit tax amount; it stops tracking the 21% default.
func (inv *SupplierInvoice) SetTax(tax types.Money) {
	inv.TaxAmount = tax
	inv.TaxSet = true
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount)
}

// RecalculateTotals re-derives subtotal, tax and total from the items.
// Runs in the same transaction as any item mutation.
func (inv *SupplierInvoice) RecalculateTotals() {
	subtotal := types.Zero()
	for i := range inv.Items {
		inv.Items[i].TotalPrice = inv.Items[i].Quantity.Mul(inv.Items[i].UnitPrice)
		subtotal = subtotal.Add(inv.Items[i].TotalPrice)
	}
	inv.Subtotal = subtotal
	if !inv.TaxSet {
		inv.TaxAmount = subtotal.Mul(types.DefaultTaxRate)
	}
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount)
}

// ApplyPaid sets the derived amounts and re-derives both status machines.
func (inv *SupplierInvoice) ApplyPaid(paid types.Money, today time.Time) {
	inv.PaidAmount = paid
	inv.RemainingAmount = inv.TotalAmount.Sub(paid)
	if inv.Status != StatusCancelled {
		inv.Status = DeriveStatus(inv.Status, inv.TotalAmount, paid)
		inv.PaymentStatus = DerivePaymentStatus(inv.TotalAmount, paid, inv.DueDate, today)
	}
}

// IsOutstanding reports whether the invoice still contributes to the
// supplier's debt balance.
func (inv *SupplierInvoice) IsOutstanding() bool {
	return inv.Status != StatusCancelled && inv.RemainingAmount.IsPositive()
}

// Validate implements invariant checks.
func (inv *SupplierInvoice) Validate(ctx context.Context) error {
	if id.IsNil(inv.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}

	if inv.InvoiceDate.IsZero() {
		return apperror.NewValidation("invoice date is required").
			WithDetail("field", "invoiceDate")
	}

	if inv.TaxAmount.IsNegative() {
		return apperror.NewValidation("tax amount must not be negative").
			WithDetail("field", "taxAmount")
	}

	for i, item := range inv.Items {
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
