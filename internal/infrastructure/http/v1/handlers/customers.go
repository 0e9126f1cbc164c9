package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tpv/internal/domain/catalog/customer"
	"tpv/internal/infrastructure/http/v1/dto"
)

// CustomerHTTPHandler handles customer catalog endpoints.
type CustomerHTTPHandler struct {
	*CatalogHandler[*customer.Customer, dto.CreateCustomerRequest, dto.UpdateCustomerRequest]
	service *customer.Service
}

// NewCustomerHandler wires the generic catalog handler for customers.
func NewCustomerHandler(base *BaseHandler, service *customer.Service) *CustomerHTTPHandler {
	config := CatalogHandlerConfig[*customer.Customer, dto.CreateCustomerRequest, dto.UpdateCustomerRequest]{
		Service:    service,
		EntityName: "customer",

		MapCreateDTO: func(req dto.CreateCustomerRequest) *customer.Customer {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateCustomerRequest, existing *customer.Customer) *customer.Customer {
			req.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(c *customer.Customer) any {
			return dto.FromCustomer(c)
		},
	}

	return &CustomerHTTPHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// GetDefault handles GET /customers/default - the walk-in fallback.
func (h *CustomerHTTPHandler) GetDefault(c *gin.Context) {
	customerID, err := h.service.DefaultCustomerID(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), customerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromCustomer(item))
}
