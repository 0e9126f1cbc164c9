// Package purchase_repo provides the PostgreSQL implementation of the
// purchase order repository.
package purchase_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/domain"
	"tpv/internal/domain/purchase"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/internal/infrastructure/storage/postgres/document_repo"
)

const (
	ordersTable     = "purchase_orders"
	orderItemsTable = "purchase_order_items"
)

var orderColumns = []string{
	"id", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"number", "supplier_id", "status",
	"total_cost", "notes",
	"received_by", "received_at",
}

var orderItemColumns = []string{
	"id", "order_id", "line_no", "product_id", "quantity", "unit_cost",
}

// OrderRepo implements purchase.Repository.
type OrderRepo struct {
	*document_repo.BaseDocumentRepo[*purchase.Order]
}

// NewOrderRepo creates a new purchase order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseDocumentRepo: document_repo.NewBaseDocumentRepo(
			txManager,
			ordersTable,
			orderColumns,
			func() *purchase.Order { return &purchase.Order{} },
		),
	}
}

// Create inserts the header and all line items.
func (r *OrderRepo) Create(ctx context.Context, o *purchase.Order) error {
	if err := r.BaseDocumentRepo.Create(ctx, o); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("purchase order", "number", o.Number).WithCause(err)
		}
		return err
	}

	if len(o.Items) == 0 {
		return nil
	}

	q := r.Builder().Insert(orderItemsTable).Columns(orderItemColumns...)
	for _, it := range o.Items {
		q = q.Values(it.ID, it.OrderID, it.LineNo, it.ProductID, it.Quantity, it.UnitCost)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	return nil
}

// GetByID loads an order with its items.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*purchase.Order, error) {
	o, err := r.BaseDocumentRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	q := r.Builder().
		Select(orderItemColumns...).
		From(orderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.Querier(ctx), &o.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}

	return o, nil
}

// UpdateStatus persists a state transition guarded on the expected current
// status, together with the receipt metadata when present.
func (r *OrderRepo) UpdateStatus(ctx context.Context, o *purchase.Order, from purchase.Status) (bool, error) {
	q := r.Builder().
		Update(ordersTable).
		Set("status", o.Status).
		Set("received_by", o.ReceivedBy).
		Set("received_at", o.ReceivedAt).
		Set("updated_by", o.UpdatedBy).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": o.ID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// List returns order headers matching the filter. Items are not loaded.
func (r *OrderRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*purchase.Order], error) {
	return r.BaseDocumentRepo.List(ctx, filter)
}

// Ensure interface compliance.
var _ purchase.Repository = (*OrderRepo)(nil)
