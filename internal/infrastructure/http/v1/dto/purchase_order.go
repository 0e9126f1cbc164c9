package dto

import (
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain/purchase"
)

// --- Request DTOs ---

// PurchaseLineRequest is one ordered line.
type PurchaseLineRequest struct {
	ProductID string      `json:"productId" binding:"required,uuid"`
	Quantity  int64       `json:"quantity" binding:"required,min=1"`
	UnitCost  types.Money `json:"unitCost"`
}

// CreatePurchaseOrderRequest is the request body for a new purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID string                `json:"supplierId" binding:"required,uuid"`
	Lines      []PurchaseLineRequest `json:"lines" binding:"required,min=1,dive"`
	Notes      string                `json:"notes"`
}

// ToInput converts the request into the service input.
func (r *CreatePurchaseOrderRequest) ToInput() (purchase.CreateInput, error) {
	supplierID, err := id.Parse(r.SupplierID)
	if err != nil {
		return purchase.CreateInput{}, apperror.NewValidation("invalid supplier id").
			WithDetail("supplier_id", r.SupplierID)
	}

	input := purchase.CreateInput{
		SupplierID: supplierID,
		Notes:      r.Notes,
	}
	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return input, apperror.NewValidation("invalid product id").
				WithDetail("line", i).WithDetail("product_id", line.ProductID)
		}
		input.Lines = append(input.Lines, purchase.Item{
			ProductID: productID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
		})
	}
	return input, nil
}

// --- Response DTOs ---

// PurchaseItemResponse is one order line in API responses.
type PurchaseItemResponse struct {
	ID        string      `json:"id"`
	LineNo    int         `json:"lineNo"`
	ProductID string      `json:"productId"`
	Quantity  int64       `json:"quantity"`
	UnitCost  types.Money `json:"unitCost"`
}

// PurchaseOrderResponse is the response body for a purchase order.
type PurchaseOrderResponse struct {
	ID         string                 `json:"id"`
	Number     string                 `json:"number"`
	SupplierID string                 `json:"supplierId"`
	Status     purchase.Status        `json:"status"`
	TotalCost  types.Money            `json:"totalCost"`
	Notes      string                 `json:"notes,omitempty"`
	ReceivedBy string                 `json:"receivedBy,omitempty"`
	ReceivedAt *time.Time             `json:"receivedAt,omitempty"`
	Items      []PurchaseItemResponse `json:"items,omitempty"`
	CreatedBy  string                 `json:"createdBy,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	Version    int                    `json:"version"`
}

// FromPurchaseOrder creates response DTO from domain entity.
func FromPurchaseOrder(o *purchase.Order) *PurchaseOrderResponse {
	resp := &PurchaseOrderResponse{
		ID:         o.ID.String(),
		Number:     o.Number,
		SupplierID: o.SupplierID.String(),
		Status:     o.Status,
		TotalCost:  o.TotalCost,
		Notes:      o.Notes,
		ReceivedBy: o.ReceivedBy,
		ReceivedAt: o.ReceivedAt,
		CreatedBy:  o.CreatedBy,
		CreatedAt:  o.CreatedAt,
		Version:    o.Version,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, PurchaseItemResponse{
			ID:        item.ID.String(),
			LineNo:    item.LineNo,
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		})
	}
	return resp
}

// FromPurchaseOrders maps order headers to response DTOs.
func FromPurchaseOrders(items []*purchase.Order) []*PurchaseOrderResponse {
	out := make([]*PurchaseOrderResponse, len(items))
	for i, o := range items {
		out[i] = FromPurchaseOrder(o)
	}
	return out
}
