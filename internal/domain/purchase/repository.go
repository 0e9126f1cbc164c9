package purchase

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/domain"
)

// Repository defines persistence for purchase orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// UpdateStatus moves the state machine guarded on the expected
	// current status; ok=false when the order was not in that status.
	UpdateStatus(ctx context.Context, o *Order, from Status) (bool, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Order], error)
}
