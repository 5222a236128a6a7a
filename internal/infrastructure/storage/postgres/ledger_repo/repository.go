// Package ledger_repo implements the supplier account journal storage on
// PostgreSQL.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/ledger"
	"payables/internal/infrastructure/storage/postgres"
)

const (
	accountTable  = "supplier_accounts"
	movementTable = "supplier_account_movements"
)

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo is the PostgreSQL implementation of ledger.Repository.
type LedgerRepo struct {
	txm          *postgres.TxManager
	accountCols  []string
	movementCols []string
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:          txm,
		accountCols:  postgres.ExtractDBColumns[ledger.SupplierAccount](),
		movementCols: postgres.ExtractDBColumns[ledger.Movement](),
	}
}

func (r *LedgerRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *LedgerRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// --- Accounts ---

func (r *LedgerRepo) accountSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.accountCols...).From(accountTable)
}

func (r *LedgerRepo) getAccount(ctx context.Context, q squirrel.SelectBuilder, key string) (*ledger.SupplierAccount, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var account ledger.SupplierAccount
	if err := pgxscan.Get(ctx, r.querier(ctx), &account, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(accountTable, key)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (r *LedgerRepo) GetAccountBySupplier(ctx context.Context, supplierID id.ID) (*ledger.SupplierAccount, error) {
	q := r.accountSelect().Where(squirrel.Eq{"supplier_id": supplierID})
	return r.getAccount(ctx, q, supplierID.String())
}

func (r *LedgerRepo) GetAccountByID(ctx context.Context, accountID id.ID) (*ledger.SupplierAccount, error) {
	q := r.accountSelect().Where(squirrel.Eq{"id": accountID})
	return r.getAccount(ctx, q, accountID.String())
}

// GetAccountBySupplierForUpdate locks the account row. Every balance writer
// goes through this lock, so concurrent recomputes serialize here.
func (r *LedgerRepo) GetAccountBySupplierForUpdate(ctx context.Context, supplierID id.ID) (*ledger.SupplierAccount, error) {
	q := r.accountSelect().
		Where(squirrel.Eq{"supplier_id": supplierID}).
		Suffix("FOR UPDATE")
	return r.getAccount(ctx, q, supplierID.String())
}

// CreateAccount inserts the account row. A lost create race must not abort
// the surrounding transaction (a raised unique violation would), so the
// insert skips on conflict and reports Conflict from the row count instead.
// The caller re-selects the winner's row under FOR UPDATE.
func (r *LedgerRepo) CreateAccount(ctx context.Context, account *ledger.SupplierAccount) error {
	data := postgres.StructToMap(account)

	q := r.builder().
		Insert(accountTable).
		SetMap(data).
		Suffix("ON CONFLICT (supplier_id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if translated := postgres.TranslateConstraintError(err, accountTable); translated != err {
			return translated
		}
		return fmt.Errorf("insert account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConflict("supplier account already exists")
	}
	return nil
}

// UpdateAccountBalances writes the recomputed balances. Callers hold the
// FOR UPDATE lock, so the version check is a safety net rather than the
// primary concurrency control.
func (r *LedgerRepo) UpdateAccountBalances(ctx context.Context, account *ledger.SupplierAccount) error {
	q := r.builder().
		Update(accountTable).
		Set("commitment_balance", account.CommitmentBalance).
		Set("debt_balance", account.DebtBalance).
		Set("total_balance", account.TotalBalance).
		Set("version", account.Version+1).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": account.ID}).
		Where(squirrel.Eq{"version": account.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update balances: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(accountTable, account.ID.String())
	}

	account.Version++
	return nil
}

func (r *LedgerRepo) UpdateCreditLimit(ctx context.Context, accountID id.ID, limit types.Money) error {
	q := r.builder().
		Update(accountTable).
		Set("credit_limit", limit).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": accountID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update credit limit: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update credit limit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(accountTable, accountID.String())
	}
	return nil
}

// --- Movements ---

func (r *LedgerRepo) movementSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.movementCols...).From(movementTable)
}

func (r *LedgerRepo) CreateMovement(ctx context.Context, movement *ledger.Movement) error {
	data := postgres.StructToMap(movement)

	q := r.builder().
		Insert(movementTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if translated := postgres.TranslateConstraintError(err, movementTable); translated != err {
			return translated
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetMovementByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	q := r.movementSelect().Where(squirrel.Eq{"id": movementID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movement ledger.Movement
	if err := pgxscan.Get(ctx, r.querier(ctx), &movement, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(movementTable, movementID.String())
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &movement, nil
}

// UpdateMovement writes only the fields the journal allows to change after
// recording. Amount, direction and balance snapshot are immutable.
func (r *LedgerRepo) UpdateMovement(ctx context.Context, movement *ledger.Movement) error {
	q := r.builder().
		Update(movementTable).
		Set("status", movement.Status).
		Set("payment_date", movement.PaymentDate).
		Set("description", movement.Description).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": movement.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update movement: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(movementTable, movement.ID.String())
	}
	return nil
}

func (r *LedgerRepo) DeleteMovement(ctx context.Context, movementID id.ID) error {
	q := r.builder().
		Delete(movementTable).
		Where(squirrel.Eq{"id": movementID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete movement: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(movementTable, movementID.String())
	}
	return nil
}

func (r *LedgerRepo) DeleteMovementsByReference(ctx context.Context, kind ledger.RefKind, refID id.ID) error {
	q := r.builder().
		Delete(movementTable).
		Where(squirrel.Eq{"reference_type": kind}).
		Where(squirrel.Eq{"reference_id": refID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete movements: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete movements by reference: %w", err)
	}
	return nil
}

func (r *LedgerRepo) ListMovements(ctx context.Context, accountID id.ID, filter ledger.MovementFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{
		Items:  []*ledger.Movement{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.movementSelect().Where(squirrel.Eq{"account_id": accountID})

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.Direction != nil {
		q = q.Where(squirrel.Eq{"direction": *filter.Direction})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.RefKind != nil {
		q = q.Where(squirrel.Eq{"reference_type": *filter.RefKind})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"description": "%" + filter.Search + "%"})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	// Journal listings default to newest first.
	q = q.OrderBy("created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}

	return result, nil
}

// --- Aggregation inputs ---

// SumInvoiceDebt totals the unpaid remainder of the supplier's live invoices.
// Cancelled and fully paid invoices contribute nothing.
func (r *LedgerRepo) SumInvoiceDebt(ctx context.Context, supplierID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(i.total_amount - COALESCE(p.paid, 0)), 0)
		FROM supplier_invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount) AS paid
			FROM supplier_invoice_payments
			GROUP BY invoice_id
		) p ON p.invoice_id = i.id
		WHERE i.supplier_id = $1
		  AND i.status NOT IN ('cancelled', 'paid')
		  AND i.total_amount > COALESCE(p.paid, 0)`

	var sum types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, supplierID).Scan(&sum); err != nil {
		return types.Zero(), fmt.Errorf("sum invoice debt: %w", err)
	}
	return sum, nil
}

func (r *LedgerRepo) InvoiceExists(ctx context.Context, invoiceID id.ID) (bool, error) {
	var exists bool
	sql := "SELECT EXISTS(SELECT 1 FROM supplier_invoices WHERE id = $1)"
	if err := r.querier(ctx).QueryRow(ctx, sql, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invoice: %w", err)
	}
	return exists, nil
}
