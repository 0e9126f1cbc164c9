package dto

import (
	"tpv/internal/core/types"
	"tpv/internal/domain/catalog/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	SKU       string      `json:"sku" binding:"required"`
	Name      string      `json:"name" binding:"required"`
	Barcode   string      `json:"barcode"`
	IsActive  *bool       `json:"isActive"`
	CostPrice types.Money `json:"costPrice"`
	SalePrice types.Money `json:"salePrice"`
	MinStock  int64       `json:"minStock" binding:"omitempty,min=0"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.New(r.SKU, r.Name)
	p.Barcode = r.Barcode
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	p.CostPrice = r.CostPrice
	p.SalePrice = r.SalePrice
	p.MinStock = r.MinStock
	return p
}

// UpdateProductRequest is the request body for updating a product.
// Stock counters are absent on purpose; only the stock ledger moves them.
type UpdateProductRequest struct {
	SKU       string      `json:"sku" binding:"required"`
	Name      string      `json:"name" binding:"required"`
	Barcode   string      `json:"barcode"`
	IsActive  bool        `json:"isActive"`
	CostPrice types.Money `json:"costPrice"`
	SalePrice types.Money `json:"salePrice"`
	MinStock  int64       `json:"minStock" binding:"omitempty,min=0"`
	Version   int         `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.SKU = r.SKU
	p.Name = r.Name
	p.Barcode = r.Barcode
	p.IsActive = r.IsActive
	p.CostPrice = r.CostPrice
	p.SalePrice = r.SalePrice
	p.MinStock = r.MinStock
	p.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID               string              `json:"id"`
	SKU              string              `json:"sku"`
	Name             string              `json:"name"`
	Barcode          string              `json:"barcode,omitempty"`
	IsActive         bool                `json:"isActive"`
	CostPrice        types.Money         `json:"costPrice"`
	SalePrice        types.Money         `json:"salePrice"`
	StockQuantity    int64               `json:"stockQuantity"`
	ReservedQuantity int64               `json:"reservedQuantity"`
	Available        int64               `json:"available"`
	MinStock         int64               `json:"minStock"`
	StockStatus      product.StockStatus `json:"stockStatus"`
	DeletionMark     bool                `json:"deletionMark"`
	Version          int                 `json:"version"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:               p.ID.String(),
		SKU:              p.SKU,
		Name:             p.Name,
		Barcode:          p.Barcode,
		IsActive:         p.IsActive,
		CostPrice:        p.CostPrice,
		SalePrice:        p.SalePrice,
		StockQuantity:    p.StockQuantity,
		ReservedQuantity: p.ReservedQuantity,
		Available:        p.Available(),
		MinStock:         p.MinStock,
		StockStatus:      p.Status(),
		DeletionMark:     p.DeletionMark,
		Version:          p.Version,
	}
}

// FromProducts maps a slice of products to response DTOs.
func FromProducts(items []*product.Product) []*ProductResponse {
	out := make([]*ProductResponse, len(items))
	for i, p := range items {
		out[i] = FromProduct(p)
	}
	return out
}
