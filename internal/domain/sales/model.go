// Package sales holds the sale aggregate and the orchestrator that
// composes the stock ledger, sale persistence and the cash session into
// one atomic unit of work.
package sales

import (
	"context"
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/entity"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
)

// Status is the sale state machine:
// pending -> confirmed -> delivered, cancelled from pending/confirmed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// CanTransitionTo reports whether the state machine allows the move.
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusDelivered || to == StatusCancelled
	default:
		return false
	}
}

// PaymentMethod is the tender used for the sale.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCard          PaymentMethod = "card"
	PaymentTransfer      PaymentMethod = "transfer"
	PaymentDigitalWallet PaymentMethod = "digital_wallet"
)

// Valid reports whether the method is one of the accepted tenders.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentDigitalWallet:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of the tender.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Item is one sale line with price and cost snapshots taken at creation.
type Item struct {
	ID          id.ID       `db:"id" json:"id"`
	SaleID      id.ID       `db:"sale_id" json:"saleId"`
	LineNo      int         `db:"line_no" json:"lineNo"`
	ProductID   id.ID       `db:"product_id" json:"productId"`
	ProductName string      `db:"product_name" json:"productName"`
	Quantity    int64       `db:"quantity" json:"quantity"`
	UnitPrice   types.Money `db:"unit_price" json:"unitPrice"`
	UnitCost    types.Money `db:"unit_cost" json:"unitCost"`
	Discount    types.Money `db:"discount" json:"discount"`
	Subtotal    types.Money `db:"subtotal" json:"subtotal"`
}

// Sale is the aggregate root. Totals are computed once at creation from
// the items and never recomputed implicitly later.
type Sale struct {
	entity.BaseDocument

	Number     string `db:"number" json:"number"`
	CustomerID id.ID  `db:"customer_id" json:"customerId"`
	Status     Status `db:"status" json:"status"`

	PaymentMethod    PaymentMethod `db:"payment_method" json:"paymentMethod"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaymentReference string        `db:"payment_reference" json:"paymentReference,omitempty"`

	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount      types.Money `db:"tax_amount" json:"taxAmount"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	TotalAmount    types.Money `db:"total_amount" json:"totalAmount"`

	Notes              string     `db:"notes" json:"notes,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy        string     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancellationReason string     `db:"cancellation_reason" json:"cancellationReason,omitempty"`

	// Items are persisted in sale_items, not a column.
	Items []Item `db:"-" json:"items"`
}

// NewSale creates a sale shell with generated ID.
func NewSale(customerID id.ID, method PaymentMethod, reference string) *Sale {
	return &Sale{
		BaseDocument:     entity.NewBaseDocument(),
		CustomerID:       customerID,
		Status:           StatusPending,
		PaymentMethod:    method,
		PaymentStatus:    PaymentStatusPending,
		PaymentReference: reference,
	}
}

// ComputeTotals derives the money fields from the items and the tax rate.
// Tax applies to the discounted base. Called exactly once at creation.
func (s *Sale) ComputeTotals(taxRate types.Money) {
	subtotal := types.Zero()
	discount := types.Zero()
	for i := range s.Items {
		line := s.Items[i].UnitPrice.Mul(types.NewMoney(float64(s.Items[i].Quantity)))
		s.Items[i].Subtotal = types.RoundMoney(line.Sub(s.Items[i].Discount))
		subtotal = subtotal.Add(line)
		discount = discount.Add(s.Items[i].Discount)
	}

	taxable := subtotal.Sub(discount)
	tax := types.RoundMoney(taxable.Mul(taxRate))

	s.Subtotal = types.RoundMoney(subtotal)
	s.DiscountAmount = types.RoundMoney(discount)
	s.TaxAmount = tax
	s.TotalAmount = types.RoundMoney(taxable).Add(tax)
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if len(s.Items) == 0 {
		return apperror.NewValidation("sale requires at least one item")
	}
	if !s.PaymentMethod.Valid() {
		return apperror.NewValidation("unknown payment method").
			WithDetail("payment_method", string(s.PaymentMethod))
	}
	if id.IsNil(s.CustomerID) {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	for i, item := range s.Items {
		if item.Quantity <= 0 {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("line", i).WithDetail("quantity", item.Quantity)
		}
		if item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
			return apperror.NewValidation("item amounts must not be negative").
				WithDetail("line", i)
		}
	}
	return nil
}

// IsCash reports whether the sale was tendered in cash.
func (s *Sale) IsCash() bool {
	return s.PaymentMethod == PaymentCash
}
