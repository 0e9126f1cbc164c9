package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"tpv/internal/core/apperror"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/infrastructure/storage/postgres"
)

const productsTable = "cat_products"

var productColumns = []string{
	"id", "deletion_mark", "version",
	"sku", "name", "barcode", "is_active",
	"cost_price", "sale_price",
	"stock_quantity", "reserved_quantity", "min_stock",
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	base := NewBaseCatalogRepo(
		txManager,
		productsTable,
		productColumns,
		[]string{"name", "sku", "barcode"},
		func() *product.Product { return &product.Product{} },
	)
	// Counters belong to the stock ledger; a catalog write racing a sale
	// must not clobber them.
	base.ExcludeFromUpdate("stock_quantity", "reserved_quantity")
	return &ProductRepo{BaseCatalogRepo: base}
}

// Create inserts a product, mapping the unique SKU violation to a
// duplicate error.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	if err := r.BaseCatalogRepo.Create(ctx, p); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("product", "sku", p.SKU).WithCause(err)
		}
		return err
	}
	return nil
}

// GetBySKU retrieves an active product by its SKU.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	q := r.Builder().
		Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"sku": sku}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	p, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", sku)
		}
		return nil, fmt.Errorf("get by sku: %w", err)
	}
	return p, nil
}

// Ensure interface compliance.
var _ product.Repository = (*ProductRepo)(nil)
