// Package cashsession owns the cash drawer session lifecycle and the
// reconciliation arithmetic at close.
package cashsession

import (
	"context"
	"time"

	"tpv/internal/core/apperror"
	"tpv/internal/core/entity"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
)

// CloseType distinguishes interim reports from the authoritative close.
// X is a mid-shift snapshot, Z the final close of the day. The arithmetic
// is identical; the distinction is informational.
type CloseType string

const (
	CloseTypeX CloseType = "X"
	CloseTypeZ CloseType = "Z"
)

// TenderBreakdown is the counted cash split by payment method at close.
// Stored as JSONB alongside the session.
type TenderBreakdown struct {
	Cash          types.Money `json:"cash"`
	Card          types.Money `json:"card"`
	Transfer      types.Money `json:"transfer"`
	DigitalWallet types.Money `json:"digitalWallet"`
}

// Session is a cash drawer session. At most one open session exists
// system-wide, enforced by a partial unique index on the store.
type Session struct {
	entity.BaseDocument

	Number         string      `db:"number" json:"number"`
	OpeningBalance types.Money `db:"opening_balance" json:"openingBalance"`

	// Running counters, additive while the session is open.
	CashSales   types.Money `db:"cash_sales" json:"cashSales"`
	CashRefunds types.Money `db:"cash_refunds" json:"cashRefunds"`
	CashInOut   types.Money `db:"cash_in_out" json:"cashInOut"`

	// Close-time fields, immutable once the session is closed.
	ExpectedCash      *types.Money     `db:"expected_cash" json:"expectedCash,omitempty"`
	ActualCash        *types.Money     `db:"actual_cash" json:"actualCash,omitempty"`
	Discrepancy       *types.Money     `db:"discrepancy" json:"discrepancy,omitempty"`
	DiscrepancyReason string           `db:"discrepancy_reason" json:"discrepancyReason,omitempty"`
	Tender            *TenderBreakdown `db:"tender" json:"tender,omitempty"`

	IsClosed  bool       `db:"is_closed" json:"isClosed"`
	CloseType *CloseType `db:"close_type" json:"closeType,omitempty"`
	Notes     string     `db:"notes" json:"notes,omitempty"`

	OpenedBy string     `db:"opened_by" json:"openedBy"`
	OpenedAt time.Time  `db:"opened_at" json:"openedAt"`
	ClosedBy string     `db:"closed_by" json:"closedBy,omitempty"`
	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

// NewSession creates an open session with the given float.
func NewSession(openingBalance types.Money, openedBy string) *Session {
	return &Session{
		BaseDocument:   entity.NewBaseDocument(),
		OpeningBalance: openingBalance,
		CashSales:      types.Zero(),
		CashRefunds:    types.Zero(),
		CashInOut:      types.Zero(),
		OpenedBy:       openedBy,
		OpenedAt:       time.Now().UTC(),
	}
}

// Expected computes the cash the drawer should hold right now:
// opening balance plus cash sales, minus refunds, plus manual in/out.
func (s *Session) Expected() types.Money {
	return s.OpeningBalance.Add(s.CashSales).Sub(s.CashRefunds).Add(s.CashInOut)
}

// Validate implements entity.Validatable.
func (s *Session) Validate(ctx context.Context) error {
	if s.OpeningBalance.IsNegative() {
		return apperror.NewValidation("opening balance must not be negative")
	}
	if s.OpenedBy == "" {
		return apperror.NewValidation("opened_by is required").WithDetail("field", "openedBy")
	}
	return nil
}

// SaleLink attaches a completed sale to a session for reconciliation.
// Appended post-commit by the outbox relay, idempotent by sale id.
type SaleLink struct {
	SessionID  id.ID       `db:"session_id" json:"sessionId"`
	SaleID     id.ID       `db:"sale_id" json:"saleId"`
	Amount     types.Money `db:"amount" json:"amount"`
	AttachedAt time.Time   `db:"attached_at" json:"attachedAt"`
}

// Adjustment is a manual cash in/out entry against the open drawer.
type Adjustment struct {
	ID        id.ID       `db:"id" json:"id"`
	SessionID id.ID       `db:"session_id" json:"sessionId"`
	Amount    types.Money `db:"amount" json:"amount"`
	Motive    string      `db:"motive" json:"motive"`
	CreatedBy string      `db:"created_by" json:"createdBy"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}
