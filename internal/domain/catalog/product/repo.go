package product

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/domain"
)

// Repository defines persistence for products.
// Stock counter columns are written only by the ledger repository;
// Update here must never overwrite them.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	SetDeletionMark(ctx context.Context, productID id.ID, marked bool) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)
	Exists(ctx context.Context, productID id.ID) (bool, error)
}
