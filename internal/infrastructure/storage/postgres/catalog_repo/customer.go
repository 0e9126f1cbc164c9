package catalog_repo

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"tpv/internal/core/apperror"
	"tpv/internal/domain/catalog/customer"
	"tpv/internal/infrastructure/storage/postgres"
)

const customersTable = "cat_customers"

var customerColumns = []string{
	"id", "deletion_mark", "version",
	"name", "email", "phone", "is_default",
}

// CustomerRepo implements customer.Repository.
type CustomerRepo struct {
	*BaseCatalogRepo[*customer.Customer]
}

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(txManager *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			customersTable,
			customerColumns,
			[]string{"name", "email", "phone"},
			func() *customer.Customer { return &customer.Customer{} },
		),
	}
}

// Create inserts a customer. A second default customer trips the partial
// unique index on is_default.
func (r *CustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	if err := r.BaseCatalogRepo.Create(ctx, c); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("a default customer already exists").WithCause(err)
		}
		return err
	}
	return nil
}

// GetDefault returns the walk-in customer.
func (r *CustomerRepo) GetDefault(ctx context.Context) (*customer.Customer, error) {
	q := r.Builder().
		Select(customerColumns...).
		From(customersTable).
		Where(squirrel.Eq{"is_default": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	c, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("customer", "default")
		}
		return nil, err
	}
	return c, nil
}

// Ensure interface compliance.
var _ customer.Repository = (*CustomerRepo)(nil)
