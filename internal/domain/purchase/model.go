// Package purchase provides purchase orders, the restock caller of the
// stock ledger.
package purchase

import (
	"context"
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/entity"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
)

// Status is the purchase order state machine:
// pending -> received, cancelled from pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// Item is one ordered product line.
type Item struct {
	ID        id.ID       `db:"id" json:"id"`
	OrderID   id.ID       `db:"order_id" json:"orderId"`
	LineNo    int         `db:"line_no" json:"lineNo"`
	ProductID id.ID       `db:"product_id" json:"productId"`
	Quantity  int64       `db:"quantity" json:"quantity"`
	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
}

// Order is a supplier purchase order. Receiving it increments stock
// through the ledger with in/purchase movements.
type Order struct {
	entity.BaseDocument

	Number     string `db:"number" json:"number"`
	SupplierID id.ID  `db:"supplier_id" json:"supplierId"`
	Status     Status `db:"status" json:"status"`

	TotalCost types.Money `db:"total_cost" json:"totalCost"`
	Notes     string      `db:"notes" json:"notes,omitempty"`

	ReceivedBy string     `db:"received_by" json:"receivedBy,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// NewOrder creates a pending order shell with generated ID.
func NewOrder(supplierID id.ID) *Order {
	return &Order{
		BaseDocument: entity.NewBaseDocument(),
		SupplierID:   supplierID,
		Status:       StatusPending,
	}
}

// ComputeTotal derives the order cost from its items.
func (o *Order) ComputeTotal() {
	total := types.Zero()
	for _, item := range o.Items {
		total = total.Add(item.UnitCost.Mul(types.NewMoney(float64(item.Quantity))))
	}
	o.TotalCost = types.RoundMoney(total)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if len(o.Items) == 0 {
		return apperror.NewValidation("order requires at least one item")
	}
	for i, item := range o.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("item product is required").WithDetail("line", i)
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("line", i).WithDetail("quantity", item.Quantity)
		}
		if item.UnitCost.IsNegative() {
			return apperror.NewValidation("item cost must not be negative").WithDetail("line", i)
		}
	}
	return nil
}
