package ledger

import (
	"context"
	"fmt"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/tx"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/refdata"
	"payables/pkg/logger"
)

// Service provides the movement journal and the balance aggregator.
//
// Every mutation runs inside one transaction: journal write, then balance
// recompute, committing together or not at all. The account row is locked for
// the whole check-then-write sequence so concurrent writers serialize.
type Service struct {
	repo    Repository
	readers refdata.Reader
	txm     tx.Manager
}

// NewService creates a new ledger service.
func NewService(repo Repository, readers refdata.Reader, txm tx.Manager) *Service {
	return &Service{
		repo:    repo,
		readers: readers,
		txm:     txm,
	}
}

// RecordInput describes a journal entry to append.
type RecordInput struct {
	SupplierID  id.ID
	Type        MovementType
	Direction   Direction
	Amount      types.Money
	Reference   Reference
	Status      MovementStatus
	Description string
	DueDate     *time.Time
	PaymentDate *time.Time
	CreatedBy   string
}

// Record appends a movement to the supplier's journal.
//
// The balance_after snapshot is computed from the account total as of insert
// time, before the aggregator reflects the new source document. The account is
// created lazily on first reference.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Movement, error) {
	if id.IsNil(in.SupplierID) {
		return nil, apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if in.Status == "" {
		in.Status = MovementCompleted
	}

	var movement *Movement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		account, err := s.lockOrCreateAccount(ctx, in.SupplierID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		movement = &Movement{
			ID:           id.New(),
			AccountID:    account.ID,
			Type:         in.Type,
			Direction:    in.Direction,
			Amount:       in.Amount,
			BalanceAfter: BalanceAfterFrom(account.TotalBalance, in.Amount, in.Direction),
			Reference:    in.Reference,
			Status:       in.Status,
			Description:  in.Description,
			DueDate:      in.DueDate,
			PaymentDate:  in.PaymentDate,
			CreatedAt:    now,
			UpdatedAt:    now,
			CreatedBy:    in.CreatedBy,
		}

		if err := movement.Validate(ctx); err != nil {
			return err
		}
		if err := s.validateReference(ctx, movement.Reference); err != nil {
			return err
		}

		if err := s.repo.CreateMovement(ctx, movement); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		return s.recomputeLocked(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement recorded",
		"movement_id", movement.ID,
		"supplier_id", in.SupplierID,
		"type", movement.Type,
		"direction", movement.Direction,
		"amount", movement.Amount)

	return movement, nil
}

// UpdateMovementInput carries the only fields editable after creation.
type UpdateMovementInput struct {
	Status      *MovementStatus
	PaymentDate *time.Time
	Description *string
}

// UpdateMovement edits status, payment date or description of a journal entry.
// Amount, direction and reference are immutable once created.
func (s *Service) UpdateMovement(ctx context.Context, movementID id.ID, in UpdateMovementInput) (*Movement, error) {
	var movement *Movement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		movement, err = s.repo.GetMovementByID(ctx, movementID)
		if err != nil {
			return err
		}

		if in.Status != nil {
			switch *in.Status {
			case MovementPending, MovementCompleted, MovementCancelled:
			default:
				return apperror.NewValidation("unknown movement status").
					WithDetail("field", "status").
					WithDetail("value", string(*in.Status))
			}
			movement.Status = *in.Status
		}
		if in.PaymentDate != nil {
			movement.PaymentDate = in.PaymentDate
		}
		if in.Description != nil {
			movement.Description = *in.Description
		}
		movement.UpdatedAt = time.Now().UTC()

		return s.repo.UpdateMovement(ctx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// DeleteMovement removes a journal entry and recomputes the account balances.
// Snapshots on other rows are historical and are not corrected.
func (s *Service) DeleteMovement(ctx context.Context, movementID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		movement, err := s.repo.GetMovementByID(ctx, movementID)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteMovement(ctx, movement.ID); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}

		account, err := s.lockAccountByID(ctx, movement.AccountID)
		if err != nil {
			return err
		}
		return s.recomputeLocked(ctx, account)
	})
}

// RemoveReference deletes every journal entry referencing a source document
// and recomputes the supplier's balances. Used when the document itself is
// deleted; cancellation keeps the journal intact.
func (s *Service) RemoveReference(ctx context.Context, supplierID id.ID, kind RefKind, refID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		account, err := s.repo.GetAccountBySupplierForUpdate(ctx, supplierID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil
			}
			return err
		}

		if err := s.repo.DeleteMovementsByReference(ctx, kind, refID); err != nil {
			return fmt.Errorf("delete movements by reference: %w", err)
		}
		return s.recomputeLocked(ctx, account)
	})
}

// Recompute re-derives the supplier's balances from live source documents.
// Idempotent; the single authority for account balance writes.
func (s *Service) Recompute(ctx context.Context, supplierID id.ID) (*SupplierAccount, error) {
	var account *SupplierAccount
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.lockOrCreateAccount(ctx, supplierID)
		if err != nil {
			return err
		}
		return s.recomputeLocked(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// AccountSummary is the outward account view with derived credit headroom.
type AccountSummary struct {
	SupplierID        id.ID       `json:"supplierId"`
	CommitmentBalance types.Money `json:"commitmentBalance"`
	DebtBalance       types.Money `json:"debtBalance"`
	TotalBalance      types.Money `json:"totalBalance"`
	CreditLimit       types.Money `json:"creditLimit"`
	AvailableCredit   types.Money `json:"availableCredit"`
}

// GetSummary returns the account snapshot. A supplier without an account yet
// reads as all-zero; reads never create rows.
func (s *Service) GetSummary(ctx context.Context, supplierID id.ID) (*AccountSummary, error) {
	if _, err := s.readers.FindSupplierByID(ctx, supplierID); err != nil {
		return nil, err
	}

	account, err := s.repo.GetAccountBySupplier(ctx, supplierID)
	if err != nil {
		if apperror.IsNotFound(err) {
			zero := types.Zero()
			return &AccountSummary{
				SupplierID:        supplierID,
				CommitmentBalance: zero,
				DebtBalance:       zero,
				TotalBalance:      zero,
				CreditLimit:       zero,
				AvailableCredit:   zero,
			}, nil
		}
		return nil, err
	}

	return &AccountSummary{
		SupplierID:        account.SupplierID,
		CommitmentBalance: account.CommitmentBalance,
		DebtBalance:       account.DebtBalance,
		TotalBalance:      account.TotalBalance,
		CreditLimit:       account.CreditLimit,
		AvailableCredit:   account.AvailableCredit(),
	}, nil
}

// SetCreditLimit edits the account's credit limit, creating the account lazily.
func (s *Service) SetCreditLimit(ctx context.Context, supplierID id.ID, limit types.Money) (*SupplierAccount, error) {
	if limit.IsNegative() {
		return nil, apperror.NewValidation("credit limit must not be negative").
			WithDetail("field", "creditLimit")
	}

	var account *SupplierAccount
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.lockOrCreateAccount(ctx, supplierID)
		if err != nil {
			return err
		}
		account.CreditLimit = limit
		return s.repo.UpdateCreditLimit(ctx, account.ID, limit)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListMovements returns journal entries for the supplier, newest first.
func (s *Service) ListMovements(ctx context.Context, supplierID id.ID, filter MovementFilter) (domain.ListResult[*Movement], error) {
	account, err := s.repo.GetAccountBySupplier(ctx, supplierID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return domain.ListResult[*Movement]{
				Items:  []*Movement{},
				Limit:  filter.Limit,
				Offset: filter.Offset,
			}, nil
		}
		return domain.ListResult[*Movement]{}, err
	}
	return s.repo.ListMovements(ctx, account.ID, filter)
}

// --- internals ---

// lockOrCreateAccount returns the supplier's account row locked FOR UPDATE,
// creating it lazily on first reference. Must run inside a transaction.
func (s *Service) lockOrCreateAccount(ctx context.Context, supplierID id.ID) (*SupplierAccount, error) {
	account, err := s.repo.GetAccountBySupplierForUpdate(ctx, supplierID)
	if err == nil {
		return account, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	if _, err := s.readers.FindSupplierByID(ctx, supplierID); err != nil {
		return nil, err
	}

	account = NewSupplierAccount(supplierID)
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		// Lost the create race: another transaction inserted first.
		if apperror.IsConflict(err) {
			return s.repo.GetAccountBySupplierForUpdate(ctx, supplierID)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// lockAccountByID resolves the account id to its supplier first, then takes
// the row lock the same way every other balance writer does.
func (s *Service) lockAccountByID(ctx context.Context, accountID id.ID) (*SupplierAccount, error) {
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAccountBySupplierForUpdate(ctx, account.SupplierID)
}

// recomputeLocked re-derives balances for an account already locked FOR UPDATE.
func (s *Service) recomputeLocked(ctx context.Context, account *SupplierAccount) error {
	commitment, err := s.readers.SumOpenCommitments(ctx, account.SupplierID)
	if err != nil {
		return fmt.Errorf("sum open commitments: %w", err)
	}

	debt, err := s.repo.SumInvoiceDebt(ctx, account.SupplierID)
	if err != nil {
		return fmt.Errorf("sum invoice debt: %w", err)
	}

	account.SetBalances(commitment, debt)
	if err := s.repo.UpdateAccountBalances(ctx, account); err != nil {
		return fmt.Errorf("update balances: %w", err)
	}

	logger.Debug(ctx, "account balances recomputed",
		"supplier_id", account.SupplierID,
		"commitment", account.CommitmentBalance,
		"debt", account.DebtBalance,
		"total", account.TotalBalance)

	return nil
}

// validateReference resolves the tagged reference against its owning store.
func (s *Service) validateReference(ctx context.Context, ref Reference) error {
	if ref.IsZero() {
		return nil
	}

	switch ref.Kind {
	case RefPurchase:
		_, err := s.readers.FindPurchaseByID(ctx, *ref.RefID)
		return err
	case RefPayment:
		_, err := s.readers.FindPaymentByID(ctx, *ref.RefID)
		return err
	case RefDeliveryNote:
		_, err := s.readers.FindDeliveryNoteByID(ctx, *ref.RefID)
		return err
	case RefInvoice:
		exists, err := s.repo.InvoiceExists(ctx, *ref.RefID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound("invoice", ref.RefID.String())
		}
		return nil
	case RefAdjustment:
		// Manual adjustments are self-describing; no backing document.
		return nil
	default:
		return apperror.NewValidation("unknown reference type").
			WithDetail("field", "referenceType")
	}
}
