// Package ledger owns the per-product stock counters and the append-only
// movement history. It is the only component allowed to mutate stock; every
// counter change is paired with a movement row written in the same
// transaction.
package ledger

import (
	"context"
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
)

// MovementType classifies the direction of a stock change.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// MovementReason records why stock moved.
type MovementReason string

const (
	ReasonSale     MovementReason = "sale"
	ReasonPurchase MovementReason = "purchase"
	ReasonManual   MovementReason = "manual"
	ReasonReturn   MovementReason = "return"
	ReasonDamaged  MovementReason = "damaged"
	ReasonExpired  MovementReason = "expired"
)

// ReferenceKind names the originating document type of a movement.
type ReferenceKind string

const (
	RefSale          ReferenceKind = "sale"
	RefPurchaseOrder ReferenceKind = "purchase_order"
	RefAdjustment    ReferenceKind = "adjustment"
)

// Reference is a tagged link to the document that caused a movement.
// The zero value means "no reference".
type Reference struct {
	Kind ReferenceKind
	ID   id.ID
}

// SaleRef builds a reference to a sale.
func SaleRef(saleID id.ID) Reference {
	return Reference{Kind: RefSale, ID: saleID}
}

// PurchaseOrderRef builds a reference to a purchase order.
func PurchaseOrderRef(orderID id.ID) Reference {
	return Reference{Kind: RefPurchaseOrder, ID: orderID}
}

// AdjustmentRef builds a reference to a stock adjustment document.
func AdjustmentRef(adjustmentID id.ID) Reference {
	return Reference{Kind: RefAdjustment, ID: adjustmentID}
}

// IsZero reports whether the reference is empty.
func (r Reference) IsZero() bool {
	return r.Kind == "" && id.IsNil(r.ID)
}

// Movement is an immutable ledger entry. Once written, only Note may be
// edited; quantities and stock snapshots are append-only.
type Movement struct {
	ID        id.ID          `db:"id" json:"id"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Type      MovementType   `db:"type" json:"type"`
	Quantity  int64          `db:"quantity" json:"quantity"`
	Reason    MovementReason `db:"reason" json:"reason"`

	// Counter snapshots taken at the instant of the mutation.
	PreviousStock      int64       `db:"previous_stock" json:"previousStock"`
	NewStock           int64       `db:"new_stock" json:"newStock"`
	ReservedAtMovement int64       `db:"reserved_at_movement" json:"reservedAtMovement"`
	UnitCostAtMovement types.Money `db:"unit_cost_at_movement" json:"unitCostAtMovement"`

	ReferenceKind *ReferenceKind `db:"reference_kind" json:"referenceKind,omitempty"`
	ReferenceID   *id.ID         `db:"reference_id" json:"referenceId,omitempty"`

	Note      string    `db:"note" json:"note,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SetReference attaches the originating document link.
func (m *Movement) SetReference(ref Reference) {
	if ref.IsZero() {
		m.ReferenceKind = nil
		m.ReferenceID = nil
		return
	}
	kind := ref.Kind
	refID := ref.ID
	m.ReferenceKind = &kind
	m.ReferenceID = &refID
}

// Reference reassembles the tagged link, zero when absent.
func (m *Movement) Reference() Reference {
	if m.ReferenceKind == nil || m.ReferenceID == nil {
		return Reference{}
	}
	return Reference{Kind: *m.ReferenceKind, ID: *m.ReferenceID}
}

// SignedQuantity returns the counter delta this movement represents.
func (m *Movement) SignedQuantity() int64 {
	switch m.Type {
	case MovementIn:
		return m.Quantity
	case MovementOut:
		return -m.Quantity
	default:
		return m.NewStock - m.PreviousStock
	}
}

// Validate checks ledger entry invariants.
func (m *Movement) Validate(ctx context.Context) error {
	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if m.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", m.Quantity)
	}
	switch m.Type {
	case MovementIn:
		if m.NewStock != m.PreviousStock+m.Quantity {
			return apperror.NewValidation("stock snapshots inconsistent with in movement")
		}
	case MovementOut:
		if m.NewStock != m.PreviousStock-m.Quantity {
			return apperror.NewValidation("stock snapshots inconsistent with out movement")
		}
	case MovementAdjustment:
		if m.Quantity != abs(m.NewStock-m.PreviousStock) {
			return apperror.NewValidation("adjustment quantity must equal the snapshot delta")
		}
	default:
		return apperror.NewValidation("unknown movement type").WithDetail("type", string(m.Type))
	}
	if m.NewStock < 0 {
		return apperror.NewValidation("movement cannot drive stock negative")
	}
	switch m.Reason {
	case ReasonSale, ReasonPurchase, ReasonManual, ReasonReturn, ReasonDamaged, ReasonExpired:
	default:
		return apperror.NewValidation("unknown movement reason").WithDetail("reason", string(m.Reason))
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
