package ledger

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
)

// CounterSnapshot captures the product counters immediately after an
// atomic mutation, as returned by the conditional UPDATE itself.
type CounterSnapshot struct {
	PreviousStock int64
	NewStock      int64
	Reserved      int64
	UnitCost      types.Money
}

// Repository defines the storage contract for stock counters and movements.
//
// Every conditional mutation must be a single atomic statement
// (UPDATE ... WHERE guard ... RETURNING), never read-then-write, so
// concurrent callers cannot both succeed against insufficient stock.
// Methods returning ok=false report a guard failure with no mutation.
type Repository interface {
	// DecrementIfAvailable subtracts qty from stock_quantity only while
	// stock minus reservations stays at or above zero.
	DecrementIfAvailable(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error)

	// Increment adds qty to stock_quantity unconditionally.
	Increment(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, error)

	// Reserve earmarks qty against availability.
	Reserve(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error)

	// Release frees up to the currently reserved amount.
	Release(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error)

	// ConsumeReservation turns a reservation into an actual decrement:
	// both stock_quantity and reserved_quantity drop by qty in one statement.
	ConsumeReservation(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error)

	// SetStock overwrites stock_quantity (manual adjustment), guarded so the
	// new value cannot fall below the reserved amount.
	SetStock(ctx context.Context, productID id.ID, newQty int64) (*CounterSnapshot, bool, error)

	// Counters reads current stock and reserved values (error detail only,
	// never used to decide a mutation).
	Counters(ctx context.Context, productID id.ID) (stock, reserved int64, err error)

	// InsertMovements appends ledger entries. Called only by the ledger
	// service inside the mutating transaction.
	InsertMovements(ctx context.Context, movements []*Movement) error

	// ListMovements returns the ordered audit trail for a product.
	ListMovements(ctx context.Context, productID id.ID, filter domain.ListFilter) (domain.ListResult[*Movement], error)

	// ReplayStock recomputes stock from the movement log, independent of
	// the live counter.
	ReplayStock(ctx context.Context, productID id.ID) (int64, error)

	// UpdateMovementNote edits the only mutable field of a movement.
	UpdateMovementNote(ctx context.Context, movementID id.ID, note string) error
}
