package liability

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
	"payables/internal/domain/refdata"
	"payables/pkg/logger"
)

// NumberPrefix for generated liability numbers (PAS-<year><seq>).
const NumberPrefix = "PAS"

// Service provides business operations for accrued liabilities, including the
// payment allocation flow.
type Service struct {
	repo    Repository
	readers refdata.Reader
	numbers numerator.Generator
	txm     tx.Manager
}

// NewService creates a new liability service.
func NewService(repo Repository, readers refdata.Reader, numbers numerator.Generator, txm tx.Manager) *Service {
	return &Service{
		repo:    repo,
		readers: readers,
		numbers: numbers,
		txm:     txm,
	}
}

func (s *Service) numberConfig() numerator.Config {
	return numerator.DefaultConfig(NumberPrefix, "accrued_liabilities", "liability_number")
}

// CreateInput describes a liability to record.
type CreateInput struct {
	SupplierID  id.ID
	Type        LiabilityType
	Amount      types.Money
	AccrualDate time.Time
	DueDate     time.Time
	Description string
	Number      string // optional; generated when empty
	CreatedBy   string
}

// Create records a new accrued liability.
func (s *Service) Create(ctx context.Context, in CreateInput) (*AccruedLiability, error) {
	if _, err := s.readers.FindSupplierByID(ctx, in.SupplierID); err != nil {
		return nil, err
	}

	l := NewAccruedLiability(in.SupplierID, in.Type, in.Amount, in.AccrualDate, in.DueDate)
	l.Description = in.Description
	l.Number = in.Number
	l.CreatedBy = in.CreatedBy

	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if l.Number == "" {
			number, err := s.numbers.NextNumber(ctx, s.numberConfig(), l.AccrualDate)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			l.Number = number
		}
		return s.repo.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "liability created",
		"liability_id", l.ID,
		"number", l.Number,
		"supplier_id", l.SupplierID,
		"amount", l.Amount)

	return l, nil
}

// GetByID loads a liability with freshly derived paid/remaining amounts.
func (s *Service) GetByID(ctx context.Context, liabilityID id.ID) (*AccruedLiability, error) {
	l, err := s.repo.GetByID(ctx, liabilityID)
	if err != nil {
		return nil, err
	}
	return s.withDerived(ctx, l)
}

// List returns liabilities; derived amounts are filled per row.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*AccruedLiability], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, err
	}
	for _, l := range result.Items {
		if _, err := s.withDerived(ctx, l); err != nil {
			return result, err
		}
	}
	return result, nil
}

// UpdateInput carries the editable header fields.
type UpdateInput struct {
	Type        *LiabilityType
	Amount      *types.Money
	AccrualDate *time.Time
	DueDate     *time.Time
	Description *string
}

// Update edits liability fields. The amount may never drop below what has
// already been paid.
func (s *Service) Update(ctx context.Context, liabilityID id.ID, in UpdateInput) (*AccruedLiability, error) {
	var l *AccruedLiability
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		l, err = s.repo.GetByIDForUpdate(ctx, liabilityID)
		if err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}

		if in.Type != nil {
			l.Type = *in.Type
		}
		if in.Amount != nil {
			if in.Amount.LessThan(paid) {
				return apperror.NewBusinessRule(apperror.CodeAmountBelowPaid,
					"amount cannot be reduced below the paid amount").
					WithDetail("amount", in.Amount.String()).
					WithDetail("paid_amount", paid.String())
			}
			l.Amount = *in.Amount
		}
		if in.AccrualDate != nil {
			l.AccrualDate = *in.AccrualDate
		}
		if in.DueDate != nil {
			l.DueDate = *in.DueDate
		}
		if in.Description != nil {
			l.Description = *in.Description
		}

		if err := l.Validate(ctx); err != nil {
			return err
		}

		l.ApplyPaid(paid, time.Now().UTC())
		l.UpdatedAt = time.Now().UTC()
		// Repo matches the loaded version and bumps it in the database.
		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		l.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Cancel marks the liability cancelled. Terminal for status derivation.
func (s *Service) Cancel(ctx context.Context, liabilityID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByIDForUpdate(ctx, liabilityID)
		if err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		if paid.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeDocumentHasPayments,
				"cannot cancel a liability with allocated payments").
				WithDetail("paid_amount", paid.String())
		}

		return s.repo.UpdateStatus(ctx, l.ID, StatusCancelled)
	})
}

// Delete removes a liability. Rejected while any payment is allocated.
func (s *Service) Delete(ctx context.Context, liabilityID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByIDForUpdate(ctx, liabilityID)
		if err != nil {
			return err
		}

		links, err := s.repo.ListLinks(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("list allocations: %w", err)
		}
		if len(links) > 0 {
			return apperror.NewBusinessRule(apperror.CodeDocumentHasPayments,
				"cannot delete a liability with allocated payments").
				WithDetail("allocations", len(links))
		}

		return s.repo.Delete(ctx, l.ID)
	})
}

// LinkPayment allocates part of a posted outflow payment against the
// liability. The liability row stays locked from the remaining-amount check
// until the allocation row is written, so concurrent allocations against the
// same liability serialize and cannot jointly over-allocate.
func (s *Service) LinkPayment(ctx context.Context, liabilityID, paymentID id.ID, amount types.Money) (*PaymentLink, error) {
	var link *PaymentLink
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByIDForUpdate(ctx, liabilityID)
		if err != nil {
			return err
		}
		if l.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cannot allocate payments to a cancelled liability")
		}

		payment, err := s.readers.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}

		paid, err := s.repo.SumLinks(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}

		alreadyLinked := true
		if _, err := s.repo.GetLink(ctx, l.ID, paymentID); err != nil {
			if !apperror.IsNotFound(err) {
				return err
			}
			alreadyLinked = false
		}

		if err := allocation.Validate(payment, allocation.Request{
			TargetID:      l.ID,
			Remaining:     l.Amount.Sub(paid),
			Amount:        amount,
			AlreadyLinked: alreadyLinked,
		}); err != nil {
			return err
		}

		link = &PaymentLink{
			ID:          id.New(),
			LiabilityID: l.ID,
			PaymentID:   payment.ID,
			Amount:      amount,
			PaymentDate: payment.PaymentDate,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repo.CreateLink(ctx, link); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}

		l.ApplyPaid(paid.Add(amount), time.Now().UTC())
		return s.repo.UpdateStatus(ctx, l.ID, l.Status)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment linked to liability",
		"liability_id", liabilityID,
		"payment_id", paymentID,
		"amount", amount)

	return link, nil
}

// UnlinkPayment is the exact inverse of LinkPayment. Unlinking a pair that is
// not linked is an error.
func (s *Service) UnlinkPayment(ctx context.Context, liabilityID, paymentID id.ID) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetByIDForUpdate(ctx, liabilityID)
		if err != nil {
			return err
		}

		link, err := s.repo.GetLink(ctx, l.ID, paymentID)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteLink(ctx, l.ID, link.PaymentID); err != nil {
			return fmt.Errorf("delete allocation: %w", err)
		}

		paid, err := s.repo.SumLinks(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}

		l.ApplyPaid(paid, time.Now().UTC())
		return s.repo.UpdateStatus(ctx, l.ID, l.Status)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "payment unlinked from liability",
		"liability_id", liabilityID,
		"payment_id", paymentID)

	return nil
}

// ListPayments returns the allocation rows for a liability.
func (s *Service) ListPayments(ctx context.Context, liabilityID id.ID) ([]PaymentLink, error) {
	if _, err := s.repo.GetByID(ctx, liabilityID); err != nil {
		return nil, err
	}
	return s.repo.ListLinks(ctx, liabilityID)
}

// withDerived fills paid/remaining from allocation rows and re-derives the
// time-dependent status (pending liabilities turn overdue purely by reading
// them after the due date).
func (s *Service) withDerived(ctx context.Context, l *AccruedLiability) (*AccruedLiability, error) {
	paid, err := s.repo.SumLinks(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("sum allocations: %w", err)
	}
	l.ApplyPaid(paid, time.Now().UTC())
	return l, nil
}
