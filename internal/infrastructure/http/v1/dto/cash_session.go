package dto

import (
	"time"

	"tpv/internal/core/types"
	"tpv/internal/domain/cashsession"
)

// --- Request DTOs ---

// OpenSessionRequest is the request body for opening a cash session.
type OpenSessionRequest struct {
	OpeningBalance types.Money `json:"openingBalance"`
}

// CloseSessionRequest is the request body for closing a cash session.
type CloseSessionRequest struct {
	ActualCash        types.Money                  `json:"actualCash"`
	CloseType         cashsession.CloseType        `json:"closeType" binding:"required"`
	Tender            *cashsession.TenderBreakdown `json:"tender"`
	Notes             string                       `json:"notes"`
	DiscrepancyReason string                       `json:"discrepancyReason"`
}

// ToInput converts the request into the close input.
func (r *CloseSessionRequest) ToInput() cashsession.CloseInput {
	return cashsession.CloseInput{
		ActualCash:        r.ActualCash,
		CloseType:         r.CloseType,
		Tender:            r.Tender,
		Notes:             r.Notes,
		DiscrepancyReason: r.DiscrepancyReason,
	}
}

// AdjustCashRequest records a manual cash in/out against the open drawer.
// Negative amounts take cash out.
type AdjustCashRequest struct {
	Amount types.Money `json:"amount"`
	Motive string      `json:"motive" binding:"required"`
}

// --- Response DTOs ---

// SessionResponse is the response body for a cash session.
type SessionResponse struct {
	ID                string                       `json:"id"`
	Number            string                       `json:"number"`
	OpeningBalance    types.Money                  `json:"openingBalance"`
	CashSales         types.Money                  `json:"cashSales"`
	CashRefunds       types.Money                  `json:"cashRefunds"`
	CashInOut         types.Money                  `json:"cashInOut"`
	ExpectedCash      *types.Money                 `json:"expectedCash,omitempty"`
	ActualCash        *types.Money                 `json:"actualCash,omitempty"`
	Discrepancy       *types.Money                 `json:"discrepancy,omitempty"`
	DiscrepancyReason string                       `json:"discrepancyReason,omitempty"`
	Tender            *cashsession.TenderBreakdown `json:"tender,omitempty"`
	IsClosed          bool                         `json:"isClosed"`
	CloseType         *cashsession.CloseType       `json:"closeType,omitempty"`
	Notes             string                       `json:"notes,omitempty"`
	OpenedBy          string                       `json:"openedBy"`
	OpenedAt          time.Time                    `json:"openedAt"`
	ClosedBy          string                       `json:"closedBy,omitempty"`
	ClosedAt          *time.Time                   `json:"closedAt,omitempty"`
	Version           int                          `json:"version"`
}

// FromSession creates response DTO from domain entity.
func FromSession(s *cashsession.Session) *SessionResponse {
	return &SessionResponse{
		ID:                s.ID.String(),
		Number:            s.Number,
		OpeningBalance:    s.OpeningBalance,
		CashSales:         s.CashSales,
		CashRefunds:       s.CashRefunds,
		CashInOut:         s.CashInOut,
		ExpectedCash:      s.ExpectedCash,
		ActualCash:        s.ActualCash,
		Discrepancy:       s.Discrepancy,
		DiscrepancyReason: s.DiscrepancyReason,
		Tender:            s.Tender,
		IsClosed:          s.IsClosed,
		CloseType:         s.CloseType,
		Notes:             s.Notes,
		OpenedBy:          s.OpenedBy,
		OpenedAt:          s.OpenedAt,
		ClosedBy:          s.ClosedBy,
		ClosedAt:          s.ClosedAt,
		Version:           s.Version,
	}
}

// FromSessions maps sessions to response DTOs.
func FromSessions(items []*cashsession.Session) []*SessionResponse {
	out := make([]*SessionResponse, len(items))
	for i, s := range items {
		out[i] = FromSession(s)
	}
	return out
}

// AdjustmentResponse is one manual cash movement in API responses.
type AdjustmentResponse struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Amount    types.Money `json:"amount"`
	Motive    string      `json:"motive"`
	CreatedBy string      `json:"createdBy"`
	CreatedAt time.Time   `json:"createdAt"`
}

// FromAdjustment creates response DTO from a cash adjustment.
func FromAdjustment(a *cashsession.Adjustment) *AdjustmentResponse {
	return &AdjustmentResponse{
		ID:        a.ID.String(),
		SessionID: a.SessionID.String(),
		Amount:    a.Amount,
		Motive:    a.Motive,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
	}
}

// SaleLinkResponse is one attached sale in the session report.
type SaleLinkResponse struct {
	SaleID     string      `json:"saleId"`
	Amount     types.Money `json:"amount"`
	AttachedAt time.Time   `json:"attachedAt"`
}

// SessionReportResponse is the reconciliation report for a session.
type SessionReportResponse struct {
	Session     *SessionResponse      `json:"session"`
	Adjustments []*AdjustmentResponse `json:"adjustments"`
	Sales       []*SaleLinkResponse   `json:"sales"`
}

// FromSessionReport creates response DTO from a domain report.
func FromSessionReport(r *cashsession.Report) *SessionReportResponse {
	resp := &SessionReportResponse{
		Session:     FromSession(r.Session),
		Adjustments: make([]*AdjustmentResponse, len(r.Adjustments)),
		Sales:       make([]*SaleLinkResponse, len(r.Sales)),
	}
	for i, a := range r.Adjustments {
		resp.Adjustments[i] = FromAdjustment(a)
	}
	for i, s := range r.Sales {
		resp.Sales[i] = &SaleLinkResponse{
			SaleID:     s.SaleID.String(),
			Amount:     s.Amount,
			AttachedAt: s.AttachedAt,
		}
	}
	return resp
}
