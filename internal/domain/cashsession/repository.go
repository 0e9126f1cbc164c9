package cashsession

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
)

// Repository defines persistence for cash sessions.
//
// The single-open invariant is enforced by the store (partial unique
// index on open sessions); Create must surface that violation as a
// conflict, not pre-check it.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, sessionID id.ID) (*Session, error)

	// GetForUpdate locks the session row for the close sequence.
	GetForUpdate(ctx context.Context, sessionID id.ID) (*Session, error)

	// GetOpen returns the currently open session, NotFound when none.
	GetOpen(ctx context.Context) (*Session, error)

	// AddCashSale / AddCashRefund / AddCashInOut bump the running counters
	// of the open session in one atomic UPDATE guarded by is_closed = false.
	// They return the session id hit, or ok=false when no session is open.
	AddCashSale(ctx context.Context, amount types.Money) (id.ID, bool, error)
	AddCashRefund(ctx context.Context, amount types.Money) (id.ID, bool, error)
	AddCashInOut(ctx context.Context, amount types.Money) (id.ID, bool, error)

	// Close persists the reconciliation outcome of a locked session.
	Close(ctx context.Context, s *Session) error

	InsertAdjustment(ctx context.Context, adj *Adjustment) error
	ListAdjustments(ctx context.Context, sessionID id.ID) ([]*Adjustment, error)

	// AttachSale links a sale for traceability, idempotent by sale id.
	AttachSale(ctx context.Context, link *SaleLink) error
	ListAttachedSales(ctx context.Context, sessionID id.ID) ([]*SaleLink, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Session], error)
}
