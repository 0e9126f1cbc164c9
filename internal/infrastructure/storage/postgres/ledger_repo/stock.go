// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository: atomic counter mutations on cat_products and the
// append-only stock_movements log.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/domain"
	"tpv/internal/domain/ledger"
	"tpv/internal/infrastructure/storage/postgres"
)

const (
	productsTable  = "cat_products"
	movementsTable = "stock_movements"
)

var movementColumns = []string{
	"id", "product_id", "type", "quantity", "reason",
	"previous_stock", "new_stock", "reserved_at_movement", "unit_cost_at_movement",
	"reference_kind", "reference_id",
	"note", "created_by", "created_at",
}

// StockRepo implements ledger.Repository.
//
// Every guarded mutation is a single conditional UPDATE with RETURNING.
// Two concurrent decrements both pass a read-then-write check; only one
// passes a guard evaluated inside the row update itself.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// DecrementIfAvailable subtracts qty from stock while availability
// (stock minus reserved) covers it.
func (r *StockRepo) DecrementIfAvailable(ctx context.Context, productID id.ID, qty int64) (*ledger.CounterSnapshot, bool, error) {
	sql := `
		UPDATE cat_products
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1
		  AND deletion_mark = FALSE
		  AND stock_quantity - reserved_quantity >= $2
		RETURNING stock_quantity, reserved_quantity, cost_price
	`
	snap, ok, err := r.scanGuarded(ctx, sql, productID, qty)
	if err != nil || !ok {
		return nil, ok, err
	}
	snap.PreviousStock = snap.NewStock + qty
	return snap, true, nil
}

// Increment adds qty to stock unconditionally.
func (r *StockRepo) Increment(ctx context.Context, productID id.ID, qty int64) (*ledger.CounterSnapshot, error) {
	sql := `
		UPDATE cat_products
		SET stock_quantity = stock_quantity + $2
		WHERE id = $1 AND deletion_mark = FALSE
		RETURNING stock_quantity, reserved_quantity, cost_price
	`
	snap, ok, err := r.scanGuarded(ctx, sql, productID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	snap.PreviousStock = snap.NewStock - qty
	return snap, nil
}

// Reserve earmarks qty against availability. Stock itself does not move.
func (r *StockRepo) Reserve(ctx context.Context, productID id.ID, qty int64) (*ledger.CounterSnapshot, bool, error) {
	sql := `
		UPDATE cat_products
		SET reserved_quantity = reserved_quantity + $2
		WHERE id = $1
		  AND deletion_mark = FALSE
		  AND stock_quantity - reserved_quantity >= $2
		RETURNING stock_quantity, reserved_quantity, cost_price
	`
	snap, ok, err := r.scanGuarded(ctx, sql, productID, qty)
	if err != nil || !ok {
		return nil, ok, err
	}
	snap.PreviousStock = snap.NewStock
	return snap, true, nil
}

// Release frees reserved units, never dropping the counter below zero.
func (r *StockRepo) Release(ctx context.Context, productID id.ID, qty int64) (*ledger.CounterSnapshot, bool, error) {
	sql := `
		UPDATE cat_products
		SET reserved_quantity = reserved_quantity - $2
		WHERE id = $1
		  AND deletion_mark = FALSE
		  AND reserved_quantity >= $2
		RETURNING stock_quantity, reserved_quantity, cost_price
	`
	snap, ok, err := r.scanGuarded(ctx, sql, productID, qty)
	if err != nil || !ok {
		return nil, ok, err
	}
	snap.PreviousStock = snap.NewStock
	return snap, true, nil
}

// ConsumeReservation converts a reservation into an actual decrement in
// one statement, so a release/decrement pair cannot race.
func (r *StockRepo) ConsumeReservation(ctx context.Context, productID id.ID, qty int64) (*ledger.CounterSnapshot, bool, error) {
	sql := `
		UPDATE cat_products
		SET stock_quantity    = stock_quantity - $2,
		    reserved_quantity = reserved_quantity - $2
		WHERE id = $1
		  AND deletion_mark = FALSE
		  AND reserved_quantity >= $2
		  AND stock_quantity >= $2
		RETURNING stock_quantity, reserved_quantity, cost_price
	`
	snap, ok, err := r.scanGuarded(ctx, sql, productID, qty)
	if err != nil || !ok {
		return nil, ok, err
	}
	snap.PreviousStock = snap.NewStock + qty
	return snap, true, nil
}

// SetStock overwrites the stock counter for a manual adjustment. The new
// value must still cover outstanding reservations. The self-join reads the
// old value under the same row lock the UPDATE takes.
func (r *StockRepo) SetStock(ctx context.Context, productID id.ID, newQty int64) (*ledger.CounterSnapshot, bool, error) {
	sql := `
		UPDATE cat_products p
		SET stock_quantity = $2
		FROM (
			SELECT id, stock_quantity AS prev_stock
			FROM cat_products
			WHERE id = $1
			FOR UPDATE
		) old
		WHERE p.id = old.id
		  AND p.deletion_mark = FALSE
		  AND $2 >= p.reserved_quantity
		RETURNING old.prev_stock, p.stock_quantity, p.reserved_quantity, p.cost_price
	`
	snap := &ledger.CounterSnapshot{}
	err := r.querier(ctx).QueryRow(ctx, sql, productID, newQty).
		Scan(&snap.PreviousStock, &snap.NewStock, &snap.Reserved, &snap.UnitCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("set stock: %w", err)
	}
	return snap, true, nil
}

// Counters reads the live counter pair.
func (r *StockRepo) Counters(ctx context.Context, productID id.ID) (int64, int64, error) {
	sql := `
		SELECT stock_quantity, reserved_quantity
		FROM cat_products
		WHERE id = $1
	`
	var stock, reserved int64
	err := r.querier(ctx).QueryRow(ctx, sql, productID).Scan(&stock, &reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, apperror.NewNotFound("product", productID.String())
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read counters: %w", err)
	}
	return stock, reserved, nil
}

// InsertMovements appends ledger entries.
func (r *StockRepo) InsertMovements(ctx context.Context, movements []*ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementRow(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementRow(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

func movementRow(m *ledger.Movement) []any {
	return []any{
		m.ID, m.ProductID, m.Type, m.Quantity, m.Reason,
		m.PreviousStock, m.NewStock, m.ReservedAtMovement, m.UnitCostAtMovement,
		m.ReferenceKind, m.ReferenceID,
		m.Note, m.CreatedBy, m.CreatedAt,
	}
}

// ListMovements returns the movement history for a product, newest first.
// Filter.Status narrows by movement type.
func (r *StockRepo) ListMovements(ctx context.Context, productID id.ID, filter domain.ListFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"type": filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.DateTo})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	q = q.OrderBy("created_at DESC", "id DESC")
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

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select movements: %w", err)
	}

	return result, nil
}

// ReplayStock folds the movement log into a stock level, independent of
// the live counter.
func (r *StockRepo) ReplayStock(ctx context.Context, productID id.ID) (int64, error) {
	sql := `
		SELECT COALESCE(SUM(
			CASE type
				WHEN 'in'  THEN quantity
				WHEN 'out' THEN -quantity
				ELSE new_stock - previous_stock
			END
		), 0)
		FROM stock_movements
		WHERE product_id = $1
	`
	var stock int64
	err := r.querier(ctx).QueryRow(ctx, sql, productID).Scan(&stock)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("replay stock: %w", err)
	}
	return stock, nil
}

// UpdateMovementNote edits the note, the only mutable movement field.
func (r *StockRepo) UpdateMovementNote(ctx context.Context, movementID id.ID, note string) error {
	q := r.builder.
		Update(movementsTable).
		Set("note", note).
		Where(squirrel.Eq{"id": movementID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movement note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock movement", movementID.String())
	}

	return nil
}

// scanGuarded runs a conditional UPDATE ... RETURNING counters statement.
// ok=false means the guard rejected the mutation (or the row is absent).
func (r *StockRepo) scanGuarded(ctx context.Context, sql string, productID id.ID, qty int64) (*ledger.CounterSnapshot, bool, error) {
	snap := &ledger.CounterSnapshot{}
	err := r.querier(ctx).QueryRow(ctx, sql, productID, qty).
		Scan(&snap.NewStock, &snap.Reserved, &snap.UnitCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("update counters: %w", err)
	}
	return snap, true, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*StockRepo)(nil)
