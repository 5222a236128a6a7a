// Package ledger provides the supplier sub-ledger: the account movement
// journal and the balance aggregator that derives account totals from live
// source documents.
package ledger

import (
	"context"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
)

// MovementType classifies the balance-affecting event.
type MovementType string

const (
	MovementCommitment MovementType = "commitment"
	MovementDebt       MovementType = "debt"
	MovementPayment    MovementType = "payment"
	MovementAdjustment MovementType = "adjustment"
)

// Direction determines how a movement affects the account total.
type Direction string

const (
	// DirectionDebit increases the amount owed to the supplier.
	DirectionDebit Direction = "debit"
	// DirectionCredit decreases the amount owed to the supplier.
	DirectionCredit Direction = "credit"
)

// MovementStatus is the editable lifecycle status of a journal entry.
type MovementStatus string

const (
	MovementPending   MovementStatus = "pending"
	MovementCompleted MovementStatus = "completed"
	MovementCancelled MovementStatus = "cancelled"
)

// RefKind enumerates the document types a movement may point at.
type RefKind string

const (
	RefPurchase     RefKind = "purchase"
	RefInvoice      RefKind = "invoice"
	RefPayment      RefKind = "payment"
	RefDeliveryNote RefKind = "delivery_note"
	RefAdjustment   RefKind = "adjustment"
)

// Reference is a tagged union over the document types a movement can point at.
// The zero value means "no reference". Kind and RefID are set together.
type Reference struct {
	Kind  RefKind `db:"reference_type" json:"referenceType,omitempty"`
	RefID *id.ID  `db:"reference_id" json:"referenceId,omitempty"`
}

// NewReference builds a reference to a document.
func NewReference(kind RefKind, refID id.ID) Reference {
	return Reference{Kind: kind, RefID: &refID}
}

// IsZero reports whether the movement carries no reference.
func (r Reference) IsZero() bool {
	return r.Kind == "" && r.RefID == nil
}

// Validate checks the reference is internally consistent.
func (r Reference) Validate() error {
	if r.IsZero() {
		return nil
	}
	switch r.Kind {
	case RefPurchase, RefInvoice, RefPayment, RefDeliveryNote, RefAdjustment:
	default:
		return apperror.NewValidation("unknown reference type").
			WithDetail("field", "referenceType").
			WithDetail("value", string(r.Kind))
	}
	if r.RefID == nil || id.IsNil(*r.RefID) {
		return apperror.NewValidation("reference id is required when reference type is set").
			WithDetail("field", "referenceId")
	}
	return nil
}

// SupplierAccount is the per-supplier balance snapshot. Balances are owned by
// the aggregator: total_balance is always commitment_balance + debt_balance
// and is never written by any other code path.
type SupplierAccount struct {
	ID                id.ID       `db:"id" json:"id"`
	SupplierID        id.ID       `db:"supplier_id" json:"supplierId"`
	CommitmentBalance types.Money `db:"commitment_balance" json:"commitmentBalance"`
	DebtBalance       types.Money `db:"debt_balance" json:"debtBalance"`
	TotalBalance      types.Money `db:"total_balance" json:"totalBalance"`
	CreditLimit       types.Money `db:"credit_limit" json:"creditLimit"`
	Version           int         `db:"version" json:"version"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updatedAt"`
}

// NewSupplierAccount creates a fresh account with zero balances.
func NewSupplierAccount(supplierID id.ID) *SupplierAccount {
	now := time.Now().UTC()
	return &SupplierAccount{
		ID:                id.New(),
		SupplierID:        supplierID,
		CommitmentBalance: types.Zero(),
		DebtBalance:       types.Zero(),
		TotalBalance:      types.Zero(),
		CreditLimit:       types.Zero(),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SetBalances applies an aggregator result, keeping the total invariant.
func (a *SupplierAccount) SetBalances(commitment, debt types.Money) {
	a.CommitmentBalance = commitment
	a.DebtBalance = debt
	a.TotalBalance = commitment.Add(debt)
	a.UpdatedAt = time.Now().UTC()
}

// AvailableCredit is derived on read, never stored.
func (a *SupplierAccount) AvailableCredit() types.Money {
	return a.CreditLimit.Sub(a.TotalBalance)
}

// Movement is one journal entry affecting a supplier account balance.
// Amount, direction and reference are immutable once created; only status,
// payment date and description may change afterwards.
type Movement struct {
	ID        id.ID        `db:"id" json:"id"`
	AccountID id.ID        `db:"account_id" json:"accountId"`
	Type      MovementType `db:"movement_type" json:"movementType"`
	Direction Direction    `db:"direction" json:"direction"`
	Amount    types.Money  `db:"amount" json:"amount"`

	// BalanceAfter snapshots the account total immediately after this entry,
	// computed at insert time from the balance before the aggregator reflects
	// the new source document. Historical snapshots are never corrected.
	BalanceAfter types.Money `db:"balance_after" json:"balanceAfter"`

	Reference

	Status      MovementStatus `db:"status" json:"status"`
	Description string         `db:"description" json:"description,omitempty"`
	DueDate     *time.Time     `db:"due_date" json:"dueDate,omitempty"`
	PaymentDate *time.Time     `db:"payment_date" json:"paymentDate,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	CreatedBy   string         `db:"created_by" json:"createdBy,omitempty"`
}

// SignedAmount returns the amount with the sign implied by the direction.
func (m *Movement) SignedAmount() types.Money {
	if m.Direction == DirectionCredit {
		return m.Amount.Neg()
	}
	return m.Amount
}

// BalanceAfterFrom computes the snapshot total for a movement applied to the
// given balance.
func BalanceAfterFrom(current types.Money, amount types.Money, direction Direction) types.Money {
	if direction == DirectionCredit {
		return current.Sub(amount)
	}
	return current.Add(amount)
}

// Validate implements invariant checks on the immutable movement core.
func (m *Movement) Validate(ctx context.Context) error {
	if id.IsNil(m.AccountID) {
		return apperror.NewValidation("account is required").
			WithDetail("field", "accountId")
	}

	switch m.Type {
	case MovementCommitment, MovementDebt, MovementPayment, MovementAdjustment:
	default:
		return apperror.NewValidation("unknown movement type").
			WithDetail("field", "movementType").
			WithDetail("value", string(m.Type))
	}

	switch m.Direction {
	case DirectionDebit, DirectionCredit:
	default:
		return apperror.NewValidation("unknown direction").
			WithDetail("field", "direction").
			WithDetail("value", string(m.Direction))
	}

	if !m.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount")
	}

	return m.Reference.Validate()
}
