package invoice

import (
	"context"
	"fmt"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/numerator"
	"payables/internal/core/tx"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/allocation"
	"payables/internal/domain/ledger"
	"payables/internal/domain/refdata"
	"payables/pkg/logger"
)

// NumberPrefix for generated invoice numbers.
const NumberPrefix = "SINV"

// Ledger is the slice of the movement journal the invoice service drives.
// Satisfied by *ledger.Service.
type Ledger interface {
	Record(ctx context.Context, in ledger.RecordInput) (*ledger.Movement, error)
	Recompute(ctx context.Context, supplierID id.ID) (*ledger.SupplierAccount, error)
	RemoveReference(ctx context.Context, supplierID id.ID, kind ledger.RefKind, refID id.ID) error
}

// Service implements supplier invoice operations. Every mutation that changes
// totals or allocations also feeds the supplier's ledger account, inside the
// same transaction.
type Service struct {
	repo    Repository
	readers refdata.Reader
	ledger  Ledger
	numbers numerator.Generator
	txm     tx.Manager
}

// NewService creates a new invoice service.
func NewService(repo Repository, readers refdata.Reader, ledgerSvc Ledger, numbers numerator.Generator, txm tx.Manager) *Service {
	return &Service{
		repo:    repo,
		readers: readers,
		ledger:  ledgerSvc,
		numbers: numbers,
		txm:     txm,
	}
}

func (s *Service) numberConfig() numerator.Config {
	return numerator.DefaultConfig(NumberPrefix, "supplier_invoices", "invoice_number")
}

// CreateInput describes a new invoice.
type CreateInput struct {
	Number      string
	SupplierID  id.ID
	PurchaseID  *id.ID
	InvoiceDate time.Time
	DueDate     *time.Time
	Items       []ItemInput
	TaxAmount   *types.Money
	Notes       string
	Received    bool
	CreatedBy   string
}

// ItemInput describes one invoice line.
type ItemInput struct {
	ProductID    *id.ID
	MaterialCode string
	Description  string
	Quantity     types.Money
	UnitPrice    types.Money
	UnitCost     *types.Money
}

// Create registers a supplier invoice and records its debt in the journal.
//
// When a purchase order is attached it must belong to the same supplier. The
// invoice number is generated when absent. Tax defaults to 21% of the subtotal
// unless given explicitly.
func (s *Service) Create(ctx context.Context, in CreateInput) (*SupplierInvoice, error) {
	supplier, err := s.readers.FindSupplierByID(ctx, in.SupplierID)
	if err != nil {
		return nil, err
	}

	if in.PurchaseID != nil {
		purchase, err := s.readers.FindPurchaseByID(ctx, *in.PurchaseID)
		if err != nil {
			return nil, err
		}
		if purchase.SupplierID != supplier.ID {
			return nil, apperror.NewReferentialMismatch("purchaseId",
				"purchase order belongs to a different supplier")
		}
	}

	inv := NewSupplierInvoice(in.SupplierID, in.InvoiceDate)
	inv.Number = in.Number
	inv.PurchaseID = in.PurchaseID
	inv.DueDate = in.DueDate
	inv.Notes = in.Notes
	inv.CreatedBy = in.CreatedBy
	if in.Received {
		inv.Status = StatusReceived
	}

	for _, item := range in.Items {
		if item.ProductID != nil {
			if _, err := s.readers.FindProductByID(ctx, *item.ProductID); err != nil {
				return nil, err
			}
		}
		inv.AddItem(Item{
			ProductID:    item.ProductID,
			MaterialCode: item.MaterialCode,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			UnitCost:     item.UnitCost,
		})
	}
	if in.TaxAmount != nil {
		inv.SetTax(*in.TaxAmount)
	}

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if inv.Number == "" {
			number, err := s.numbers.NextNumber(ctx, s.numberConfig(), inv.InvoiceDate)
			if err != nil {
				return fmt.Errorf("generate invoice number: %w", err)
			}
			inv.Number = number
		}

		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}

		// A draft created without items carries no debt yet; the first
		// item edit recomputes the balance instead.
		if !inv.TotalAmount.IsPositive() {
			return nil
		}

		_, err := s.ledger.Record(ctx, ledger.RecordInput{
			SupplierID:  inv.SupplierID,
			Type:        ledger.MovementDebt,
			Direction:   ledger.DirectionDebit,
			Amount:      inv.TotalAmount,
			Reference:   ledger.NewReference(ledger.RefInvoice, inv.ID),
			Description: fmt.Sprintf("invoice %s received", inv.Number),
			DueDate:     inv.DueDate,
			CreatedBy:   in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	inv.ApplyPaid(types.Zero(), time.Now().UTC())
	logger.Info(ctx, "invoice created",
		"invoice_id", inv.ID,
		"number", inv.Number,
		"supplier_id", inv.SupplierID,
		"total", inv.TotalAmount)

	return inv, nil
}

// GetByID returns the invoice with items and derived payment state.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*SupplierInvoice, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.withDerived(ctx, inv)
}

// List returns invoices matching the filter with derived payment state.
func (s *Service) List(ctx context.Context, filter ListFilter) (*domain.ListResult[SupplierInvoice], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range result.Items {
		paid, err := s.repo.SumLinks(ctx, result.Items[i].ID)
		if err != nil {
			return nil, err
		}
		result.Items[i].ApplyPaid(paid, now)
	}
	return result, nil
}

// UpdateInput carries editable invoice header fields.
type UpdateInput struct {
	InvoiceDate *time.Time
	DueDate     *time.Time
	TaxAmount   *types.Money
	Notes       *string
	Received    *bool
}

// Update edits header fields. Lowering the total below the amount already
// allocated is rejected.
func (s *Service) Update(ctx context.Context, invoiceID id.ID, in UpdateInput) (*SupplierInvoice, error) {
	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cancelled invoice cannot be edited")
		}

		if in.InvoiceDate != nil {
			inv.InvoiceDate = *in.InvoiceDate
		}
		if in.DueDate != nil {
			inv.DueDate = in.DueDate
		}
		if in.Notes != nil {
			inv.Notes = *in.Notes
		}
		if in.TaxAmount != nil {
			inv.SetTax(*in.TaxAmount)
		}
		if in.Received != nil && *in.Received && inv.Status == StatusDraft {
			inv.Status = StatusReceived
		}

		return s.persistTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// AddItem appends a line and re-derives totals, statuses and the supplier's
// debt balance in one transaction.
func (s *Service) AddItem(ctx context.Context, invoiceID id.ID, in ItemInput) (*SupplierInvoice, error) {
	if in.ProductID != nil {
		if _, err := s.readers.FindProductByID(ctx, *in.ProductID); err != nil {
			return nil, err
		}
	}

	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cancelled invoice cannot be edited")
		}

		inv.AddItem(Item{
			ProductID:    in.ProductID,
			MaterialCode: in.MaterialCode,
			Description:  in.Description,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			UnitCost:     in.UnitCost,
		})
		return s.persistTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateItem edits one line by id and re-derives totals.
func (s *Service) UpdateItem(ctx context.Context, invoiceID, itemID id.ID, in ItemInput) (*SupplierInvoice, error) {
	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cancelled invoice cannot be edited")
		}

		found := false
		for i := range inv.Items {
			if inv.Items[i].ID == itemID {
				inv.Items[i].ProductID = in.ProductID
				inv.Items[i].MaterialCode = in.MaterialCode
				inv.Items[i].Description = in.Description
				inv.Items[i].Quantity = in.Quantity
				inv.Items[i].UnitPrice = in.UnitPrice
				inv.Items[i].UnitCost = in.UnitCost
				found = true
				break
			}
		}
		if !found {
			return apperror.NewNotFound("invoice item", itemID.String())
		}

		inv.RecalculateTotals()
		return s.persistTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// DeleteItem removes one line and re-derives totals.
func (s *Service) DeleteItem(ctx context.Context, invoiceID, itemID id.ID) (*SupplierInvoice, error) {
	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cancelled invoice cannot be edited")
		}

		items := inv.Items[:0]
		found := false
		for _, item := range inv.Items {
			if item.ID == itemID {
				found = true
				continue
			}
			items = append(items, item)
		}
		if !found {
			return apperror.NewNotFound("invoice item", itemID.String())
		}
		for i := range items {
			items[i].LineNo = i + 1
		}
		inv.Items = items

		inv.RecalculateTotals()
		return s.persistTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// LinkPayment allocates part of a posted outflow payment to the invoice.
//
// The invoice row is locked for the whole check-then-insert sequence, so two
// concurrent allocations against the same invoice serialize and the loser sees
// the winner's allocation. The payment leg lands in the journal and the
// supplier's debt balance shrinks in the same transaction.
func (s *Service) LinkPayment(ctx context.Context, invoiceID, paymentID id.ID, amount types.Money, createdBy string) (*SupplierInvoice, error) {
	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cancelled invoice cannot accept payments")
		}

		payment, err := s.readers.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, inv.ID)
		if err != nil {
			return err
		}

		alreadyLinked := false
		if _, err := s.repo.GetLink(ctx, inv.ID, paymentID); err == nil {
			alreadyLinked = true
		} else if !apperror.IsNotFound(err) {
			return err
		}

		if err := allocation.Validate(payment, allocation.Request{
			TargetID:      inv.ID,
			Remaining:     inv.TotalAmount.Sub(paid),
			Amount:        amount,
			AlreadyLinked: alreadyLinked,
		}); err != nil {
			return err
		}

		link := &PaymentLink{
			ID:          id.New(),
			InvoiceID:   inv.ID,
			PaymentID:   paymentID,
			Amount:      amount,
			PaymentDate: payment.PaymentDate,
			CreatedAt:   time.Now().UTC(),
			CreatedBy:   createdBy,
		}
		if err := s.repo.CreateLink(ctx, link); err != nil {
			return err
		}

		inv.ApplyPaid(paid.Add(amount), time.Now().UTC())
		if err := s.repo.UpdateStatus(ctx, inv.ID, inv.Status, inv.PaymentStatus); err != nil {
			return err
		}

		_, err = s.ledger.Record(ctx, ledger.RecordInput{
			SupplierID:  inv.SupplierID,
			Type:        ledger.MovementPayment,
			Direction:   ledger.DirectionCredit,
			Amount:      amount,
			Reference:   ledger.NewReference(ledger.RefPayment, paymentID),
			Description: fmt.Sprintf("payment allocated to invoice %s", inv.Number),
			PaymentDate: &payment.PaymentDate,
			CreatedBy:   createdBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment linked to invoice",
		"invoice_id", invoiceID,
		"payment_id", paymentID,
		"amount", amount)
	return inv, nil
}

// UnlinkPayment removes an allocation and re-derives statuses and balances.
// Journal entries are historical and stay in place; only the aggregate moves.
func (s *Service) UnlinkPayment(ctx context.Context, invoiceID, paymentID id.ID) (*SupplierInvoice, error) {
	var inv *SupplierInvoice
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.lockWithItems(ctx, invoiceID)
		if err != nil {
			return err
		}

		if _, err := s.repo.GetLink(ctx, inv.ID, paymentID); err != nil {
			return err
		}
		if err := s.repo.DeleteLink(ctx, inv.ID, paymentID); err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, inv.ID)
		if err != nil {
			return err
		}
		inv.ApplyPaid(paid, time.Now().UTC())
		if err := s.repo.UpdateStatus(ctx, inv.ID, inv.Status, inv.PaymentStatus); err != nil {
			return err
		}

		_, err = s.ledger.Recompute(ctx, inv.SupplierID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListPayments returns the invoice's payment allocations.
func (s *Service) ListPayments(ctx context.Context, invoiceID id.ID) ([]PaymentLink, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListLinks(ctx, invoiceID)
}

// Cancel marks the invoice cancelled and drops it from the debt balance.
// Invoices with allocated payments must be unlinked first.
func (s *Service) Cancel(ctx context.Context, invoiceID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, inv.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeDocumentHasPayments,
				"invoice has allocated payments")
		}

		if err := s.repo.UpdateStatus(ctx, inv.ID, StatusCancelled, inv.PaymentStatus); err != nil {
			return err
		}

		_, err = s.ledger.Recompute(ctx, inv.SupplierID)
		return err
	})
}

// Delete removes the invoice, its items and its journal trace. Rejected while
// payments are allocated or an expense document references the invoice.
func (s *Service) Delete(ctx context.Context, invoiceID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		links, err := s.repo.ListLinks(ctx, inv.ID)
		if err != nil {
			return err
		}
		if len(links) > 0 {
			return apperror.NewBusinessRule(apperror.CodeDocumentHasPayments,
				"invoice has allocated payments")
		}

		linked, err := s.repo.HasExpenseLink(ctx, inv.ID)
		if err != nil {
			return err
		}
		if linked {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"invoice is referenced by an expense document")
		}

		if err := s.repo.Delete(ctx, inv.ID); err != nil {
			return err
		}
		return s.ledger.RemoveReference(ctx, inv.SupplierID, ledger.RefInvoice, inv.ID)
	})
}

// --- internals ---

// lockWithItems takes the invoice row lock and loads its items.
func (s *Service) lockWithItems(ctx context.Context, invoiceID id.ID) (*SupplierInvoice, error) {
	inv, err := s.repo.GetByIDForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// persistTotals validates the invoice against its allocations, writes the
// header and items and recomputes the supplier's balances. Must run inside a
// transaction holding the invoice row lock.
func (s *Service) persistTotals(ctx context.Context, inv *SupplierInvoice) error {
	paid, err := s.repo.SumLinks(ctx, inv.ID)
	if err != nil {
		return err
	}
	if inv.TotalAmount.LessThan(paid) {
		return apperror.NewBusinessRule(apperror.CodeAmountBelowPaid,
			"invoice total cannot drop below the amount already paid").
			WithDetail("totalAmount", inv.TotalAmount).
			WithDetail("paidAmount", paid)
	}

	if err := inv.Validate(ctx); err != nil {
		return err
	}

	inv.ApplyPaid(paid, time.Now().UTC())
	inv.UpdatedAt = time.Now().UTC()

	// The repo matches the loaded version and bumps it in the database;
	// mirror the bump on the entity only after it succeeds.
	if err := s.repo.Update(ctx, inv); err != nil {
		return err
	}
	inv.Version++
	if err := s.repo.SaveItems(ctx, inv.ID, inv.Items); err != nil {
		return fmt.Errorf("save items: %w", err)
	}

	_, err = s.ledger.Recompute(ctx, inv.SupplierID)
	return err
}

// withDerived loads items and allocations and derives payment state.
func (s *Service) withDerived(ctx context.Context, inv *SupplierInvoice) (*SupplierInvoice, error) {
	items, err := s.repo.GetItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items

	paid, err := s.repo.SumLinks(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.ApplyPaid(paid, time.Now().UTC())
	return inv, nil
}
