package payable_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/liability"
	"payables/internal/infrastructure/storage/postgres"
)

const (
	liabilityTable     = "accrued_liabilities"
	liabilityLinkTable = "accrued_liability_payments"
)

// Compile-time check.
var _ liability.Repository = (*LiabilityRepo)(nil)

// LiabilityRepo is the PostgreSQL implementation of liability.Repository.
type LiabilityRepo struct {
	*BaseDocumentRepo[*liability.AccruedLiability]
	linkCols []string
}

// NewLiabilityRepo creates a new liability repository.
func NewLiabilityRepo(txm *postgres.TxManager) *LiabilityRepo {
	return &LiabilityRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			liabilityTable,
			"liability_number",
			postgres.ExtractDBColumns[liability.AccruedLiability](),
			func() *liability.AccruedLiability { return &liability.AccruedLiability{} },
		),
		linkCols: postgres.ExtractDBColumns[liability.PaymentLink](),
	}
}

// UpdateStatus persists a derived status without touching other fields.
func (r *LiabilityRepo) UpdateStatus(ctx context.Context, liabilityID id.ID, status liability.Status) error {
	q := r.Builder().
		Update(liabilityTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": liabilityID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(liabilityTable, liabilityID.String())
	}
	return nil
}

// List retrieves liabilities with filtering and pagination.
func (r *LiabilityRepo) List(ctx context.Context, filter liability.ListFilter) (domain.ListResult[*liability.AccruedLiability], error) {
	result := domain.ListResult[*liability.AccruedLiability]{
		Items:  []*liability.AccruedLiability{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"liability_type": *filter.Type})
	}
	if filter.DueFrom != nil {
		q = q.Where(squirrel.GtOrEq{"due_date": *filter.DueFrom})
	}
	if filter.DueTo != nil {
		q = q.Where(squirrel.LtOrEq{"due_date": *filter.DueTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"liability_number": pattern},
			squirrel.ILike{"description": pattern},
		})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

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

	if err := pgxscan.Select(ctx, r.Querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list liabilities: %w", err)
	}

	return result, nil
}

// CreateLink inserts an allocation row. A duplicate (liability, payment) pair
// violates the unique constraint and surfaces as a conflict.
func (r *LiabilityRepo) CreateLink(ctx context.Context, link *liability.PaymentLink) error {
	data := postgres.StructToMap(link)

	q := r.Builder().
		Insert(liabilityLinkTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert link: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if translated := postgres.TranslateConstraintError(err, liabilityLinkTable); translated != err {
			return translated
		}
		return fmt.Errorf("insert allocation: %w", err)
	}
	return nil
}

// DeleteLink removes an allocation row.
func (r *LiabilityRepo) DeleteLink(ctx context.Context, liabilityID, paymentID id.ID) error {
	q := r.Builder().
		Delete(liabilityLinkTable).
		Where(squirrel.Eq{"liability_id": liabilityID}).
		Where(squirrel.Eq{"payment_id": paymentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete link: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("allocation", paymentID.String())
	}
	return nil
}

// GetLink returns the allocation row for a (liability, payment) pair.
func (r *LiabilityRepo) GetLink(ctx context.Context, liabilityID, paymentID id.ID) (*liability.PaymentLink, error) {
	q := r.Builder().
		Select(r.linkCols...).
		From(liabilityLinkTable).
		Where(squirrel.Eq{"liability_id": liabilityID}).
		Where(squirrel.Eq{"payment_id": paymentID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get link: %w", err)
	}

	var link liability.PaymentLink
	if err := pgxscan.Get(ctx, r.Querier(ctx), &link, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("allocation", paymentID.String())
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	return &link, nil
}

// ListLinks returns all allocation rows for a liability, oldest first.
func (r *LiabilityRepo) ListLinks(ctx context.Context, liabilityID id.ID) ([]liability.PaymentLink, error) {
	q := r.Builder().
		Select(r.linkCols...).
		From(liabilityLinkTable).
		Where(squirrel.Eq{"liability_id": liabilityID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list links: %w", err)
	}

	links := []liability.PaymentLink{}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &links, sql, args...); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return links, nil
}

// SumLinks totals the allocated amounts for a liability.
func (r *LiabilityRepo) SumLinks(ctx context.Context, liabilityID id.ID) (types.Money, error) {
	q := r.Builder().
		Select("COALESCE(SUM(amount), 0)").
		From(liabilityLinkTable).
		Where(squirrel.Eq{"liability_id": liabilityID})

	sql, args, err := q.ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build sum links: %w", err)
	}

	var sum types.Money
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return types.Zero(), fmt.Errorf("sum allocations: %w", err)
	}
	return sum, nil
}
