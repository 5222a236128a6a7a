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
	"payables/internal/domain/invoice"
	"payables/internal/infrastructure/storage/postgres"
)

const (
	invoiceTable     = "supplier_invoices"
	invoiceItemTable = "supplier_invoice_items"
	invoiceLinkTable = "supplier_invoice_payments"
	expenseRefTable  = "supplier_expenses"
)

var _ invoice.Repository = (*InvoiceRepo)(nil)

// InvoiceRepo is the PostgreSQL implementation of invoice.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.SupplierInvoice]
	batch    *postgres.BatchInserter
	itemCols []string
	linkCols []string
}

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			invoiceTable,
			"invoice_number",
			postgres.ExtractDBColumns[invoice.SupplierInvoice](),
			func() *invoice.SupplierInvoice { return &invoice.SupplierInvoice{} },
		),
		batch:    postgres.NewBatchInserter(txm),
		itemCols: postgres.ExtractDBColumns[invoice.Item](),
		linkCols: postgres.ExtractDBColumns[invoice.PaymentLink](),
	}
}

// UpdateStatus persists the derived document and payment statuses.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, invoiceID id.ID, status invoice.Status, paymentStatus invoice.PaymentStatus) error {
	q := r.Builder().
		Update(invoiceTable).
		Set("status", status).
		Set("payment_status", paymentStatus).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": invoiceID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(invoiceTable, invoiceID.String())
	}
	return nil
}

// List retrieves invoices with filtering and pagination. Items are not
// loaded here; callers fetch them per invoice when needed.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.ListFilter) (*domain.ListResult[invoice.SupplierInvoice], error) {
	result := &domain.ListResult[invoice.SupplierInvoice]{
		Items:  []invoice.SupplierInvoice{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.PurchaseID != nil {
		q = q.Where(squirrel.Eq{"purchase_id": *filter.PurchaseID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.PaymentStatus != nil {
		q = q.Where(squirrel.Eq{"payment_status": *filter.PaymentStatus})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"invoice_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"invoice_date": *filter.DateTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"invoice_number": pattern},
			squirrel.ILike{"notes": pattern},
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
		return result, fmt.Errorf("list invoices: %w", err)
	}

	return result, nil
}

// SaveItems replaces the item set of an invoice. The caller runs this inside
// the transaction that holds the invoice row lock, so delete plus COPY is
// atomic with the header update.
func (r *InvoiceRepo) SaveItems(ctx context.Context, invoiceID id.ID, items []invoice.Item) error {
	delQ := r.Builder().
		Delete(invoiceItemTable).
		Where(squirrel.Eq{"invoice_id": invoiceID})

	sql, args, err := delQ.ToSql()
	if err != nil {
		return fmt.Errorf("build delete items: %w", err)
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(items))
	for i := range items {
		data := postgres.StructToMap(&items[i])
		row := make([]any, len(r.itemCols))
		for j, col := range r.itemCols {
			row[j] = data[col]
		}
		rows = append(rows, row)
	}

	if _, err := r.batch.CopyFromSlice(ctx, invoiceItemTable, r.itemCols, rows); err != nil {
		return fmt.Errorf("copy items: %w", err)
	}
	return nil
}

// GetItems loads the invoice's items ordered by line number.
func (r *InvoiceRepo) GetItems(ctx context.Context, invoiceID id.ID) ([]invoice.Item, error) {
	q := r.Builder().
		Select(r.itemCols...).
		From(invoiceItemTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get items: %w", err)
	}

	items := []invoice.Item{}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return items, nil
}

// HasExpenseLink reports whether any expense document references the invoice.
func (r *InvoiceRepo) HasExpenseLink(ctx context.Context, invoiceID id.ID) (bool, error) {
	sql := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE invoice_id = $1)",
		expenseRefTable,
	)

	var exists bool
	if err := r.Querier(ctx).QueryRow(ctx, sql, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check expense link: %w", err)
	}
	return exists, nil
}

// CreateLink inserts a payment allocation row. Duplicate (invoice, payment)
// pairs violate the unique constraint and surface as a conflict.
func (r *InvoiceRepo) CreateLink(ctx context.Context, link *invoice.PaymentLink) error {
	data := postgres.StructToMap(link)

	q := r.Builder().
		Insert(invoiceLinkTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert link: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if translated := postgres.TranslateConstraintError(err, invoiceLinkTable); translated != err {
			return translated
		}
		return fmt.Errorf("insert allocation: %w", err)
	}
	return nil
}

// DeleteLink removes a payment allocation row.
func (r *InvoiceRepo) DeleteLink(ctx context.Context, invoiceID, paymentID id.ID) error {
	q := r.Builder().
		Delete(invoiceLinkTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
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

// GetLink returns the allocation row for an (invoice, payment) pair.
func (r *InvoiceRepo) GetLink(ctx context.Context, invoiceID, paymentID id.ID) (*invoice.PaymentLink, error) {
	q := r.Builder().
		Select(r.linkCols...).
		From(invoiceLinkTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		Where(squirrel.Eq{"payment_id": paymentID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get link: %w", err)
	}

	var link invoice.PaymentLink
	if err := pgxscan.Get(ctx, r.Querier(ctx), &link, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("allocation", paymentID.String())
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	return &link, nil
}

// ListLinks returns all allocation rows for an invoice, oldest first.
func (r *InvoiceRepo) ListLinks(ctx context.Context, invoiceID id.ID) ([]invoice.PaymentLink, error) {
	q := r.Builder().
		Select(r.linkCols...).
		From(invoiceLinkTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list links: %w", err)
	}

	links := []invoice.PaymentLink{}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &links, sql, args...); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return links, nil
}

// SumLinks totals the allocated amounts for an invoice.
func (r *InvoiceRepo) SumLinks(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	q := r.Builder().
		Select("COALESCE(SUM(amount), 0)").
		From(invoiceLinkTable).
		Where(squirrel.Eq{"invoice_id": invoiceID})

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
