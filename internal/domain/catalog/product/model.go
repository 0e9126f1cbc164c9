// Package product provides the inventory-bearing product catalog entry.
// Stock counters live on the product row but are mutated only through the
// stock ledger; catalog writes never touch them.
package product

import (
	"context"
	"strings"

	"tpv/internal/core/apperror"
	"tpv/internal/core/entity"
	"tpv/internal/core/types"
)

// StockStatus classifies availability for storefront filtering.
type StockStatus string

const (
	StockStatusOut StockStatus = "out-of-stock"
	StockStatusLow StockStatus = "low-stock"
	StockStatusIn  StockStatus = "in-stock"
)

// Product is a sellable catalog item.
type Product struct {
	entity.BaseCatalog

	SKU      string `db:"sku" json:"sku"`
	Name     string `db:"name" json:"name"`
	Barcode  string `db:"barcode" json:"barcode,omitempty"`
	IsActive bool   `db:"is_active" json:"isActive"`

	CostPrice types.Money `db:"cost_price" json:"costPrice"`
	SalePrice types.Money `db:"sale_price" json:"salePrice"`

	// Counters owned by the stock ledger. Whole units.
	StockQuantity    int64 `db:"stock_quantity" json:"stockQuantity"`
	ReservedQuantity int64 `db:"reserved_quantity" json:"reservedQuantity"`
	MinStock         int64 `db:"min_stock" json:"minStock"`
}

// New creates a product with generated ID.
func New(sku, name string) *Product {
	return &Product{
		BaseCatalog: entity.NewBaseCatalog(),
		SKU:         sku,
		Name:        name,
		IsActive:    true,
	}
}

// Available returns units on hand not earmarked by reservations.
// Derived, never persisted.
func (p *Product) Available() int64 {
	return p.StockQuantity - p.ReservedQuantity
}

// Status classifies current availability against the minimum stock level.
func (p *Product) Status() StockStatus {
	available := p.Available()
	switch {
	case available <= 0:
		return StockStatusOut
	case available <= p.MinStock:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.SKU) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.CostPrice.IsNegative() || p.SalePrice.IsNegative() {
		return apperror.NewValidation("prices must not be negative")
	}
	if p.SalePrice.LessThan(p.CostPrice) {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"sale price must not be below cost price",
		).WithDetail("cost_price", p.CostPrice.String()).
			WithDetail("sale_price", p.SalePrice.String())
	}
	if p.StockQuantity < 0 || p.ReservedQuantity < 0 {
		return apperror.NewValidation("stock counters must not be negative")
	}
	if p.ReservedQuantity > p.StockQuantity {
		return apperror.NewValidation("reserved quantity cannot exceed stock quantity")
	}
	if p.MinStock < 0 {
		return apperror.NewValidation("min stock must not be negative")
	}
	return nil
}
