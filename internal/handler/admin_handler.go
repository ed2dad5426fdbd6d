package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves payment review and fulfilment. Every route behind it
// requires middleware.RequireAdmin.
type AdminHandler struct {
	saleService *service.SaleService
	logger      *zap.Logger
}

func NewAdminHandler(saleService *service.SaleService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		saleService: saleService,
		logger:      logger,
	}
}

func (h *AdminHandler) Approve(c *gin.Context) {
	h.apply(c, "Failed to approve sale", h.saleService.Approve)
}

func (h *AdminHandler) Reject(c *gin.Context) {
	h.apply(c, "Failed to reject sale", h.saleService.Reject)
}

func (h *AdminHandler) MarkDelivered(c *gin.Context) {
	h.apply(c, "Failed to mark sale delivered", h.saleService.MarkDelivered)
}

func (h *AdminHandler) Dispatch(c *gin.Context) {
	var req domain.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	sale, err := h.saleService.Dispatch(requestContext(c), c.Param("id"), req.TrackingCode)
	if err != nil {
		respondError(c, h.logger, err, "Failed to dispatch sale")
		return
	}

	c.JSON(http.StatusOK, domain.NewSaleView(sale))
}

func (h *AdminHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get sale")
		return
	}

	c.JSON(http.StatusOK, domain.NewSaleView(sale))
}

func (h *AdminHandler) ListSales(c *gin.Context) {
	filter, err := saleFilterFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list sales")
		return
	}
	filter.CustomerID = strings.TrimSpace(c.Query("customer_id"))

	sales, err := h.saleService.ListSales(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list sales")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sales": saleViews(sales)})
}

func (h *AdminHandler) apply(c *gin.Context, message string, op func(context.Context, string) (*domain.Sale, error)) {
	sale, err := op(requestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, message)
		return
	}

	c.JSON(http.StatusOK, domain.NewSaleView(sale))
}
