package dto

import (
	"time"

	"tpv/internal/core/types"
	"tpv/internal/domain/ledger"
)

// --- Request DTOs ---

// AdjustStockRequest is the request body for a stock adjustment.
// Quantity is the absolute new on-hand count, not a delta.
type AdjustStockRequest struct {
	Quantity int64                 `json:"quantity" binding:"min=0"`
	Reason   ledger.MovementReason `json:"reason" binding:"required"`
	Note     string                `json:"note"`
}

// AnnotateMovementRequest edits a movement note.
type AnnotateMovementRequest struct {
	Note string `json:"note" binding:"required"`
}

// --- Response DTOs ---

// MovementResponse represents a stock movement in API responses.
type MovementResponse struct {
	ID                 string                `json:"id"`
	ProductID          string                `json:"productId"`
	Type               ledger.MovementType   `json:"type"`
	Quantity           int64                 `json:"quantity"`
	Reason             ledger.MovementReason `json:"reason"`
	PreviousStock      int64                 `json:"previousStock"`
	NewStock           int64                 `json:"newStock"`
	ReservedAtMovement int64                 `json:"reservedAtMovement"`
	UnitCostAtMovement types.Money           `json:"unitCostAtMovement"`
	ReferenceKind      string                `json:"referenceKind,omitempty"`
	ReferenceID        string                `json:"referenceId,omitempty"`
	Note               string                `json:"note,omitempty"`
	CreatedBy          string                `json:"createdBy,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
}

// FromMovement creates response DTO from a ledger entry.
func FromMovement(m *ledger.Movement) *MovementResponse {
	resp := &MovementResponse{
		ID:                 m.ID.String(),
		ProductID:          m.ProductID.String(),
		Type:               m.Type,
		Quantity:           m.Quantity,
		Reason:             m.Reason,
		PreviousStock:      m.PreviousStock,
		NewStock:           m.NewStock,
		ReservedAtMovement: m.ReservedAtMovement,
		UnitCostAtMovement: m.UnitCostAtMovement,
		Note:               m.Note,
		CreatedBy:          m.CreatedBy,
		CreatedAt:          m.CreatedAt,
	}
	if ref := m.Reference(); !ref.IsZero() {
		resp.ReferenceKind = string(ref.Kind)
		resp.ReferenceID = ref.ID.String()
	}
	return resp
}

// FromMovements maps movements to response DTOs.
func FromMovements(items []*ledger.Movement) []*MovementResponse {
	out := make([]*MovementResponse, len(items))
	for i, m := range items {
		out[i] = FromMovement(m)
	}
	return out
}

// StockVerificationResponse compares the live counter with the replayed log.
type StockVerificationResponse struct {
	ProductID     string `json:"productId"`
	CounterStock  int64  `json:"counterStock"`
	ReplayedStock int64  `json:"replayedStock"`
	Consistent    bool   `json:"consistent"`
}
