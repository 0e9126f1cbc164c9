package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/domain/cashsession"
	"tpv/internal/infrastructure/http/v1/dto"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/pkg/logger"
)

// CashSessionHandler handles the cash drawer session lifecycle.
type CashSessionHandler struct {
	*BaseHandler
	service *cashsession.Service
	audit   *postgres.AuditService
}

// NewCashSessionHandler creates a new cash session handler.
func NewCashSessionHandler(base *BaseHandler, service *cashsession.Service, audit *postgres.AuditService) *CashSessionHandler {
	return &CashSessionHandler{BaseHandler: base, service: service, audit: audit}
}

func (h *CashSessionHandler) logAudit(c *gin.Context, sessionID id.ID, action postgres.AuditAction, changes map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogChange(c.Request.Context(), "cash_session", sessionID, action, changes); err != nil {
		logger.Warn(c.Request.Context(), "audit log failed", "error", err)
	}
}

// Open handles POST /cash-sessions - opens the drawer with a float.
// A second open while one session is running returns a conflict.
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Open(c.Request.Context(), req.OpeningBalance)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, session.ID, postgres.AuditActionOpen, map[string]any{
		"number":          session.Number,
		"opening_balance": session.OpeningBalance,
	})

	h.CreatedWith(c, dto.FromSession(session))
}

// Current handles GET /cash-sessions/current - the open session.
func (h *CashSessionHandler) Current(c *gin.Context) {
	session, err := h.service.Current(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSession(session))
}

// Get handles GET /cash-sessions/:id.
func (h *CashSessionHandler) Get(c *gin.Context) {
	sessionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	session, err := h.service.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSession(session))
}

// Close handles POST /cash-sessions/:id/close - reconciles and closes.
func (h *CashSessionHandler) Close(c *gin.Context) {
	sessionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CloseSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Close(c.Request.Context(), sessionID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(c, session.ID, postgres.AuditActionClose, map[string]any{
		"close_type":    session.CloseType,
		"expected_cash": session.ExpectedCash,
		"actual_cash":   session.ActualCash,
		"discrepancy":   session.Discrepancy,
	})

	h.OK(c, dto.FromSession(session))
}

// Adjust handles POST /cash-sessions/adjustments - manual cash in/out
// against the open drawer.
func (h *CashSessionHandler) Adjust(c *gin.Context) {
	var req dto.AdjustCashRequest
	if !h.BindJSON(c, &req) {
		return
	}

	adj, err := h.service.Adjust(c.Request.Context(), req.Amount, req.Motive)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedWith(c, dto.FromAdjustment(adj))
}

// Report handles GET /cash-sessions/:id/report - the reconciliation
// report with adjustments and attached sales.
func (h *CashSessionHandler) Report(c *gin.Context) {
	sessionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSessionReport(report))
}

// List handles GET /cash-sessions.
func (h *CashSessionHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter := query.ToFilter()
	// Sessions have no status column; the open one is served by /current.
	filter.Status = ""

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.FromSessions(result.Items), result))
}
