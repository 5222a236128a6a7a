// Package refdata_repo reads externally-owned reference tables. All queries
// are plain selects; the payables service never writes these tables.
package refdata_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain/refdata"
	"payables/internal/infrastructure/storage/postgres"
)

var _ refdata.Reader = (*Reader)(nil)

// Reader is the PostgreSQL implementation of refdata.Reader.
type Reader struct {
	txm *postgres.TxManager
}

// NewReader creates a new reference data reader.
func NewReader(txm *postgres.TxManager) *Reader {
	return &Reader{txm: txm}
}

func (r *Reader) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Reader) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func getByID[T any](ctx context.Context, r *Reader, table string, cols []string, entityID id.ID) (*T, error) {
	q := r.builder().
		Select(cols...).
		From(table).
		Where(squirrel.Eq{"id": entityID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entity T
	if err := pgxscan.Get(ctx, r.querier(ctx), &entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(table, entityID.String())
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return &entity, nil
}

func (r *Reader) FindSupplierByID(ctx context.Context, supplierID id.ID) (*refdata.Supplier, error) {
	return getByID[refdata.Supplier](ctx, r, "suppliers",
		postgres.ExtractDBColumns[refdata.Supplier](), supplierID)
}

func (r *Reader) FindPurchaseByID(ctx context.Context, purchaseID id.ID) (*refdata.Purchase, error) {
	return getByID[refdata.Purchase](ctx, r, "purchases",
		postgres.ExtractDBColumns[refdata.Purchase](), purchaseID)
}

func (r *Reader) FindPaymentByID(ctx context.Context, paymentID id.ID) (*refdata.Payment, error) {
	return getByID[refdata.Payment](ctx, r, "payments",
		postgres.ExtractDBColumns[refdata.Payment](), paymentID)
}

func (r *Reader) FindProductByID(ctx context.Context, productID id.ID) (*refdata.Product, error) {
	return getByID[refdata.Product](ctx, r, "products",
		postgres.ExtractDBColumns[refdata.Product](), productID)
}

func (r *Reader) FindDeliveryNoteByID(ctx context.Context, noteID id.ID) (*refdata.DeliveryNote, error) {
	return getByID[refdata.DeliveryNote](ctx, r, "supplier_delivery_notes",
		postgres.ExtractDBColumns[refdata.DeliveryNote](), noteID)
}

// SumOpenCommitments totals commitment-type purchases still open for the
// supplier.
func (r *Reader) SumOpenCommitments(ctx context.Context, supplierID id.ID) (types.Money, error) {
	q := r.builder().
		Select("COALESCE(SUM(total_amount), 0)").
		From("purchases").
		Where(squirrel.Eq{
			"supplier_id":   supplierID,
			"is_commitment": true,
			"status":        refdata.PurchaseOpen,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build sum commitments: %w", err)
	}

	var sum types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return types.Zero(), fmt.Errorf("sum open commitments: %w", err)
	}
	return sum, nil
}
