package customer

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/domain"
)

// Repository defines persistence for customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, customerID id.ID) (*Customer, error)
	// GetDefault returns the walk-in customer. At most one row carries
	// is_default, enforced by a partial unique index.
	GetDefault(ctx context.Context) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error)
	SetDeletionMark(ctx context.Context, customerID id.ID, marked bool) error
}
