package dto

import (
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain/sales"
)

// --- Request DTOs ---

// SaleLineRequest is one requested line of a sale.
type SaleLineRequest struct {
	ProductID string      `json:"productId" binding:"required,uuid"`
	Quantity  int64       `json:"quantity" binding:"required,min=1"`
	UnitPrice types.Money `json:"unitPrice"`
	Discount  types.Money `json:"discount"`
}

// CreateSaleRequest is the request body for a POS sale or a draft.
type CreateSaleRequest struct {
	CustomerID       string              `json:"customerId" binding:"omitempty,uuid"`
	PaymentMethod    sales.PaymentMethod `json:"paymentMethod" binding:"required"`
	PaymentReference string              `json:"paymentReference"`
	Lines            []SaleLineRequest   `json:"lines" binding:"required,min=1,dive"`
	Notes            string              `json:"notes"`
}

// ToInput converts the request into the orchestrator input.
func (r *CreateSaleRequest) ToInput() (sales.SellInput, error) {
	input := sales.SellInput{
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		Notes:            r.Notes,
	}

	if r.CustomerID != "" {
		customerID, err := id.Parse(r.CustomerID)
		if err != nil {
			return input, apperror.NewValidation("invalid customer id").
				WithDetail("customer_id", r.CustomerID)
		}
		input.CustomerID = &customerID
	}

	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return input, apperror.NewValidation("invalid product id").
				WithDetail("line", i).WithDetail("product_id", line.ProductID)
		}
		input.Lines = append(input.Lines, sales.Line{
			ProductID: productID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
		})
	}
	return input, nil
}

// CancelSaleRequest is the request body for cancelling a sale.
type CancelSaleRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- Response DTOs ---

// SaleItemResponse is one sale line in API responses.
type SaleItemResponse struct {
	ID          string      `json:"id"`
	LineNo      int         `json:"lineNo"`
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	Discount    types.Money `json:"discount"`
	Subtotal    types.Money `json:"subtotal"`
}

// SaleResponse is the response body for a sale.
type SaleResponse struct {
	ID                 string              `json:"id"`
	Number             string              `json:"number"`
	CustomerID         string              `json:"customerId"`
	Status             sales.Status        `json:"status"`
	PaymentMethod      sales.PaymentMethod `json:"paymentMethod"`
	PaymentStatus      sales.PaymentStatus `json:"paymentStatus"`
	PaymentReference   string              `json:"paymentReference,omitempty"`
	Subtotal           types.Money         `json:"subtotal"`
	TaxAmount          types.Money         `json:"taxAmount"`
	DiscountAmount     types.Money         `json:"discountAmount"`
	TotalAmount        types.Money         `json:"totalAmount"`
	Notes              string              `json:"notes,omitempty"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty"`
	CancelledBy        string              `json:"cancelledBy,omitempty"`
	CancellationReason string              `json:"cancellationReason,omitempty"`
	Items              []SaleItemResponse  `json:"items,omitempty"`
	CreatedBy          string              `json:"createdBy,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	Version            int                 `json:"version"`
}

// FromSale creates response DTO from domain entity.
func FromSale(s *sales.Sale) *SaleResponse {
	resp := &SaleResponse{
		ID:                 s.ID.String(),
		Number:             s.Number,
		CustomerID:         s.CustomerID.String(),
		Status:             s.Status,
		PaymentMethod:      s.PaymentMethod,
		PaymentStatus:      s.PaymentStatus,
		PaymentReference:   s.PaymentReference,
		Subtotal:           s.Subtotal,
		TaxAmount:          s.TaxAmount,
		DiscountAmount:     s.DiscountAmount,
		TotalAmount:        s.TotalAmount,
		Notes:              s.Notes,
		CancelledAt:        s.CancelledAt,
		CancelledBy:        s.CancelledBy,
		CancellationReason: s.CancellationReason,
		CreatedBy:          s.CreatedBy,
		CreatedAt:          s.CreatedAt,
		Version:            s.Version,
	}
	for _, item := range s.Items {
		resp.Items = append(resp.Items, SaleItemResponse{
			ID:          item.ID.String(),
			LineNo:      item.LineNo,
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Subtotal:    item.Subtotal,
		})
	}
	return resp
}

// FromSales maps sale headers to response DTOs.
func FromSales(items []*sales.Sale) []*SaleResponse {
	out := make([]*SaleResponse, len(items))
	for i, s := range items {
		out[i] = FromSale(s)
	}
	return out
}
