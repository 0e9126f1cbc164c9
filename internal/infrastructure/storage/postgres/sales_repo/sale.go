// Package sales_repo provides the PostgreSQL implementation of the sales
// repository: sale headers plus their line items.
package sales_repo

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
	"tpv/internal/domain/sales"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/internal/infrastructure/storage/postgres/document_repo"
)

const (
	salesTable     = "sales"
	saleItemsTable = "sale_items"
)

var saleColumns = []string{
	"id", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"number", "customer_id", "status",
	"payment_method", "payment_status", "payment_reference",
	"subtotal", "tax_amount", "discount_amount", "total_amount",
	"notes", "cancelled_at", "cancelled_by", "cancellation_reason",
}

var saleItemColumns = []string{
	"id", "sale_id", "line_no", "product_id", "product_name",
	"quantity", "unit_price", "unit_cost", "discount", "subtotal",
}

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	*document_repo.BaseDocumentRepo[*sales.Sale]
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: document_repo.NewBaseDocumentRepo(
			txManager,
			salesTable,
			saleColumns,
			func() *sales.Sale { return &sales.Sale{} },
		),
	}
}

// Create inserts the header and all line items. Callers run it inside a
// transaction; the items go in via COPY.
func (r *SaleRepo) Create(ctx context.Context, s *sales.Sale) error {
	if err := r.BaseDocumentRepo.Create(ctx, s); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("sale", "number", s.Number).WithCause(err)
		}
		return err
	}
	return r.insertItems(ctx, s.Items)
}

func (r *SaleRepo) insertItems(ctx context.Context, items []sales.Item) error {
	if len(items) == 0 {
		return nil
	}

	if tx := r.TxManager().GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.TxManager())
		rows := make([][]any, 0, len(items))
		for _, it := range items {
			rows = append(rows, saleItemRow(it))
		}
		if _, err := inserter.CopyFromSlice(ctx, saleItemsTable, saleItemColumns, rows); err != nil {
			return fmt.Errorf("copy sale items: %w", err)
		}
		return nil
	}

	q := r.Builder().Insert(saleItemsTable).Columns(saleItemColumns...)
	for _, it := range items {
		q = q.Values(saleItemRow(it)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}

	return nil
}

func saleItemRow(it sales.Item) []any {
	return []any{
		it.ID, it.SaleID, it.LineNo, it.ProductID, it.ProductName,
		it.Quantity, it.UnitPrice, it.UnitCost, it.Discount, it.Subtotal,
	}
}

// GetByID loads a sale with its items.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	s, err := r.BaseDocumentRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByNumber loads a sale by its human-facing number, items included.
func (r *SaleRepo) GetByNumber(ctx context.Context, number string) (*sales.Sale, error) {
	s, err := r.BaseDocumentRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SaleRepo) loadItems(ctx context.Context, s *sales.Sale) error {
	q := r.Builder().
		Select(saleItemColumns...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.Querier(ctx), &s.Items, sql, args...); err != nil {
		return fmt.Errorf("select sale items: %w", err)
	}

	return nil
}

// UpdateStatus moves the state machine guarded on the expected current
// status. ok=false means the sale was not in that status.
func (r *SaleRepo) UpdateStatus(ctx context.Context, saleID id.ID, from, to sales.Status) (bool, error) {
	q := r.Builder().
		Update(salesTable).
		Set("status", to).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": saleID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("update sale status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkCancelled records cancellation metadata with the same status guard.
func (r *SaleRepo) MarkCancelled(ctx context.Context, s *sales.Sale, from sales.Status) (bool, error) {
	q := r.Builder().
		Update(salesTable).
		Set("status", sales.StatusCancelled).
		Set("payment_status", s.PaymentStatus).
		Set("cancelled_at", s.CancelledAt).
		Set("cancelled_by", s.CancelledBy).
		Set("cancellation_reason", s.CancellationReason).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": s.ID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("mark sale cancelled: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SetPaymentStatus updates settlement state of the tender.
func (r *SaleRepo) SetPaymentStatus(ctx context.Context, saleID id.ID, status sales.PaymentStatus) error {
	q := r.Builder().
		Update(salesTable).
		Set("payment_status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": saleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID.String())
	}

	return nil
}

// List returns sale headers matching the filter. Items are not loaded.
func (r *SaleRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*sales.Sale], error) {
	return r.BaseDocumentRepo.List(ctx, filter)
}

// Ensure interface compliance.
var _ sales.Repository = (*SaleRepo)(nil)
