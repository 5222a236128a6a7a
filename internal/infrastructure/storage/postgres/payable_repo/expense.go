package payable_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"payables/internal/domain"
	"payables/internal/domain/expense"
	"payables/internal/infrastructure/storage/postgres"
)

const expenseTable = "supplier_expenses"

var _ expense.Repository = (*ExpenseRepo)(nil)

// ExpenseRepo is the PostgreSQL implementation of expense.Repository.
type ExpenseRepo struct {
	*BaseDocumentRepo[*expense.SupplierExpense]
}

// NewExpenseRepo creates a new expense repository.
func NewExpenseRepo(txm *postgres.TxManager) *ExpenseRepo {
	return &ExpenseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			expenseTable,
			"expense_number",
			postgres.ExtractDBColumns[expense.SupplierExpense](),
			func() *expense.SupplierExpense { return &expense.SupplierExpense{} },
		),
	}
}

// List retrieves expenses with filtering and pagination.
func (r *ExpenseRepo) List(ctx context.Context, filter expense.ListFilter) (*domain.ListResult[expense.SupplierExpense], error) {
	result := &domain.ListResult[expense.SupplierExpense]{
		Items:  []expense.SupplierExpense{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.InvoiceID != nil {
		q = q.Where(squirrel.Eq{"invoice_id": *filter.InvoiceID})
	}
	if filter.Category != nil {
		q = q.Where(squirrel.Eq{"category": *filter.Category})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"expense_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"expense_date": *filter.DateTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"expense_number": pattern},
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
		return result, fmt.Errorf("list expenses: %w", err)
	}

	return result, nil
}
