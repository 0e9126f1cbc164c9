// Package customer provides the customer catalog consumed by sales.
package customer

import (
	"context"
	"strings"

	"tpv/internal/core/apperror"
	"tpv/internal/core/entity"
)

// Customer is a buyer record. Exactly one customer carries IsDefault,
// the walk-in fallback used when a sale omits a customer.
type Customer struct {
	entity.BaseCatalog

	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email,omitempty"`
	Phone     string `db:"phone" json:"phone,omitempty"`
	IsDefault bool   `db:"is_default" json:"isDefault"`
}

// New creates a customer with generated ID.
func New(name string) *Customer {
	return &Customer{
		BaseCatalog: entity.NewBaseCatalog(),
		Name:        name,
	}
}

// Validate implements entity.Validatable.
func (c *Customer) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}
