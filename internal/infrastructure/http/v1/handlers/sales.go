package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/domain/sales"
	"tpv/internal/infrastructure/http/v1/dto"
)

// SalesHandler handles sale endpoints: the POS quick sale, the draft
// flow and the lifecycle transitions.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service}
}

// Sell handles POST /sales - the POS entry point. The sale completes
// in one request: stock decremented, payment recorded, drawer bumped.
func (h *SalesHandler) Sell(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.Sell(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedWith(c, dto.FromSale(sale))
}

// CreateDraft handles POST /sales/drafts - a pending sale that reserves
// stock instead of shipping it.
func (h *SalesHandler) CreateDraft(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.CreateDraft(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedWith(c, dto.FromSale(sale))
}

// Confirm handles POST /sales/:id/confirm.
func (h *SalesHandler) Confirm(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sale, err := h.service.Confirm(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(sale))
}

// Deliver handles POST /sales/:id/deliver.
func (h *SalesHandler) Deliver(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.MarkDelivered(c.Request.Context(), saleID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "sale delivered")
}

// Cancel handles POST /sales/:id/cancel.
func (h *SalesHandler) Cancel(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CancelSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := h.service.Cancel(c.Request.Context(), saleID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(sale))
}

// Get handles GET /sales/:id.
func (h *SalesHandler) Get(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sale, err := h.service.Get(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSale(sale))
}

// GetByNumber handles GET /sales/number/:number - receipt lookup.
func (h *SalesHandler) GetByNumber(c *gin.Context) {
	sale, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSale(sale))
}

// List handles GET /sales - headers only, no items.
func (h *SalesHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.service.List(c.Request.Context(), query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.FromSales(result.Items), result))
}
