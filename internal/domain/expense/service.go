package expense

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
	"payables/internal/domain/invoice"
	"payables/internal/domain/refdata"
	"payables/pkg/logger"
)

// NumberPrefix for generated expense numbers.
const NumberPrefix = "EXP"

// InvoiceReader is the invoice lookup the link flow needs. Satisfied by
// *invoice.Service.
type InvoiceReader interface {
	GetByID(ctx context.Context, invoiceID id.ID) (*invoice.SupplierInvoice, error)
}

// Service implements expense document operations. Expenses do not feed the
// ledger; the linked invoice already carries the debt.
type Service struct {
	repo     Repository
	readers  refdata.Reader
	invoices InvoiceReader
	numbers  numerator.Generator
	txm      tx.Manager
}

// NewService creates a new expense service.
func NewService(repo Repository, readers refdata.Reader, invoices InvoiceReader, numbers numerator.Generator, txm tx.Manager) *Service {
	return &Service{
		repo:     repo,
		readers:  readers,
		invoices: invoices,
		numbers:  numbers,
		txm:      txm,
	}
}

func (s *Service) numberConfig() numerator.Config {
	return numerator.DefaultConfig(NumberPrefix, "supplier_expenses", "expense_number")
}

// CreateInput describes a new expense.
type CreateInput struct {
	Number      string
	SupplierID  *id.ID
	Category    string
	Description string
	Amount      types.Money
	ExpenseDate time.Time
	CreatedBy   string
}

// Create registers an expense. The number is generated when absent.
func (s *Service) Create(ctx context.Context, in CreateInput) (*SupplierExpense, error) {
	if in.SupplierID != nil {
		if _, err := s.readers.FindSupplierByID(ctx, *in.SupplierID); err != nil {
			return nil, err
		}
	}

	exp := NewSupplierExpense(in.Amount, in.ExpenseDate)
	exp.Number = in.Number
	exp.SupplierID = in.SupplierID
	exp.Category = in.Category
	exp.Description = in.Description
	exp.CreatedBy = in.CreatedBy

	if err := exp.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if exp.Number == "" {
			number, err := s.numbers.NextNumber(ctx, s.numberConfig(), exp.ExpenseDate)
			if err != nil {
				return fmt.Errorf("generate expense number: %w", err)
			}
			exp.Number = number
		}
		return s.repo.Create(ctx, exp)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "expense created",
		"expense_id", exp.ID,
		"number", exp.Number,
		"amount", exp.Amount)
	return exp, nil
}

// GetByID returns the expense.
func (s *Service) GetByID(ctx context.Context, expenseID id.ID) (*SupplierExpense, error) {
	return s.repo.GetByID(ctx, expenseID)
}

// List returns expenses matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (*domain.ListResult[SupplierExpense], error) {
	return s.repo.List(ctx, filter)
}

// UpdateInput carries editable expense fields.
type UpdateInput struct {
	Category    *string
	Description *string
	Amount      *types.Money
	ExpenseDate *time.Time
}

// Update edits the expense. While an invoice is linked, the amount must keep
// matching the invoice total within tolerance.
func (s *Service) Update(ctx context.Context, expenseID id.ID, in UpdateInput) (*SupplierExpense, error) {
	var exp *SupplierExpense
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetByIDForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}

		if in.Category != nil {
			exp.Category = *in.Category
		}
		if in.Description != nil {
			exp.Description = *in.Description
		}
		if in.ExpenseDate != nil {
			exp.ExpenseDate = *in.ExpenseDate
		}
		if in.Amount != nil {
			exp.Amount = *in.Amount
		}

		if err := exp.Validate(ctx); err != nil {
			return err
		}

		if in.Amount != nil && exp.IsLinked() {
			inv, err := s.invoices.GetByID(ctx, *exp.InvoiceID)
			if err != nil {
				return err
			}
			if !types.WithinTolerance(inv.TotalAmount, exp.Amount) {
				return apperror.NewReferentialMismatch("amount",
					"expense amount no longer matches the linked invoice total")
			}
		}

		exp.UpdatedAt = time.Now().UTC()
		// Repo matches the loaded version and bumps it in the database.
		if err := s.repo.Update(ctx, exp); err != nil {
			return err
		}
		exp.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// LinkInvoice attaches a supplier invoice to the expense.
//
// The invoice must belong to the expense's supplier (when the expense names
// one) and its total must match the expense amount within tolerance.
func (s *Service) LinkInvoice(ctx context.Context, expenseID, invoiceID id.ID) (*SupplierExpense, error) {
	var exp *SupplierExpense
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetByIDForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if exp.IsLinked() {
			return apperror.NewConflict("expense already has a linked invoice")
		}

		inv, err := s.invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}

		if exp.SupplierID != nil && inv.SupplierID != *exp.SupplierID {
			return apperror.NewReferentialMismatch("supplierId",
				"invoice belongs to a different supplier")
		}
		if !types.WithinTolerance(inv.TotalAmount, exp.Amount) {
			return apperror.NewReferentialMismatch("amount",
				"invoice total does not match the expense amount").
				WithDetail("invoiceTotal", inv.TotalAmount).
				WithDetail("expenseAmount", exp.Amount)
		}

		exp.InvoiceID = &inv.ID
		exp.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, exp); err != nil {
			return err
		}
		exp.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice linked to expense",
		"expense_id", expenseID,
		"invoice_id", invoiceID)
	return exp, nil
}

// UnlinkInvoice detaches the invoice from the expense.
func (s *Service) UnlinkInvoice(ctx context.Context, expenseID id.ID) (*SupplierExpense, error) {
	var exp *SupplierExpense
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetByIDForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if !exp.IsLinked() {
			return apperror.NewValidation("expense has no linked invoice")
		}

		exp.InvoiceID = nil
		exp.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, exp); err != nil {
			return err
		}
		exp.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// Delete removes the expense. Rejected while an invoice is linked.
func (s *Service) Delete(ctx context.Context, expenseID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		exp, err := s.repo.GetByIDForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if exp.IsLinked() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"expense has a linked invoice")
		}
		return s.repo.Delete(ctx, exp.ID)
	})
}
