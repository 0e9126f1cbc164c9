package sales

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/domain"
)

// Repository defines persistence for sales.
type Repository interface {
	// Create inserts the header and all line items.
	Create(ctx context.Context, s *Sale) error

	// GetByID loads a sale with its items.
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)

	// GetByNumber loads a sale by its human-facing number.
	GetByNumber(ctx context.Context, number string) (*Sale, error)

	// UpdateStatus moves the state machine, guarded on the expected
	// current status so concurrent transitions cannot race.
	// ok=false means the sale was not in the expected status.
	UpdateStatus(ctx context.Context, saleID id.ID, from, to Status) (bool, error)

	// MarkCancelled records cancellation metadata along with the
	// status transition, same guard as UpdateStatus.
	MarkCancelled(ctx context.Context, s *Sale, from Status) (bool, error)

	// SetPaymentStatus updates settlement state of the tender.
	SetPaymentStatus(ctx context.Context, saleID id.ID, status PaymentStatus) error

	// List returns sale headers matching the filter (items not loaded).
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Sale], error)
}
