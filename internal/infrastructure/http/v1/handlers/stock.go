package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/domain/ledger"
	"tpv/internal/infrastructure/http/v1/dto"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/pkg/logger"
)

// StockHandler exposes the stock ledger: adjustments, the movement
// trail and the replay verification.
type StockHandler struct {
	*BaseHandler
	ledger   *ledger.Service
	products *product.Service
	audit    *postgres.AuditService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledgerSvc *ledger.Service, products *product.Service, audit *postgres.AuditService) *StockHandler {
	return &StockHandler{BaseHandler: base, ledger: ledgerSvc, products: products, audit: audit}
}

// Adjust handles POST /products/:id/stock/adjust - cycle count or
// write-off setting the absolute on-hand quantity.
func (h *StockHandler) Adjust(c *gin.Context) {
	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movement, err := h.ledger.Adjust(c.Request.Context(), productID, req.Quantity, req.Reason, req.Note, ledger.Reference{})
	if err != nil {
		h.Error(c, err)
		return
	}
	if movement == nil {
		// Requested quantity matched the counter, nothing moved.
		h.Success(c, "stock unchanged")
		return
	}

	if h.audit != nil {
		if err := h.audit.LogChange(c.Request.Context(), "product", productID, postgres.AuditActionUpdate, map[string]any{
			"reason":         req.Reason,
			"note":           req.Note,
			"previous_stock": movement.PreviousStock,
			"new_stock":      movement.NewStock,
		}); err != nil {
			logger.Warn(c.Request.Context(), "audit log failed", "error", err)
		}
	}

	h.OK(c, dto.FromMovement(movement))
}

// Movements handles GET /products/:id/stock/movements - the audit trail.
func (h *StockHandler) Movements(c *gin.Context) {
	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.ledger.History(c.Request.Context(), productID, query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.FromMovements(result.Items), result))
}

// Verify handles GET /products/:id/stock/verify - replays the movement
// log and compares it with the live counter.
func (h *StockHandler) Verify(c *gin.Context) {
	productID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	ctx := c.Request.Context()
	p, err := h.products.Get(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	replayed, err := h.ledger.CurrentStock(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StockVerificationResponse{
		ProductID:     productID.String(),
		CounterStock:  p.StockQuantity,
		ReplayedStock: replayed,
		Consistent:    p.StockQuantity == replayed,
	})
}

// AnnotateMovement handles PATCH /stock/movements/:id/note - the only
// mutable field of a ledger entry.
func (h *StockHandler) AnnotateMovement(c *gin.Context) {
	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.AnnotateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.ledger.AnnotateMovement(c.Request.Context(), movementID, req.Note); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "movement annotated")
}
