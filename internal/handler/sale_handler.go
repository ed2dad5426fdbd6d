package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/service"
	"github.com/cloud-wave-best-zizon/sale-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SaleHandler serves the customer side of the storefront. Every route
// behind it requires middleware.RequireCustomer.
type SaleHandler struct {
	saleService    *service.SaleService
	paymentDetails domain.PaymentDetails
	logger         *zap.Logger
}

func NewSaleHandler(saleService *service.SaleService, paymentDetails domain.PaymentDetails, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService:    saleService,
		paymentDetails: paymentDetails,
		logger:         logger,
	}
}

func (h *SaleHandler) Checkout(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	sale, err := h.saleService.Checkout(requestContext(c), service.CheckoutInput{
		CustomerID:    middleware.GetCustomerID(c),
		Items:         req.Items,
		DeliveryMode:  req.DeliveryMode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to checkout")
		return
	}

	c.JSON(http.StatusCreated, domain.CheckoutResponse{
		SaleID: sale.SaleID,
		Status: sale.Status,
		Total:  sale.Total,
	})
}

func (h *SaleHandler) UploadProof(c *gin.Context) {
	var req domain.UploadProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	_, err := h.saleService.UploadProof(requestContext(c), middleware.GetCustomerID(c), c.Param("id"), req.ProofRef)
	if err != nil {
		respondError(c, h.logger, err, "Failed to upload payment proof")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SaleHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.GetCustomerSale(c.Request.Context(), middleware.GetCustomerID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get sale")
		return
	}

	c.JSON(http.StatusOK, domain.NewSaleView(sale))
}

func (h *SaleHandler) ListMySales(c *gin.Context) {
	filter, err := saleFilterFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list sales")
		return
	}

	sales, err := h.saleService.ListCustomerSales(c.Request.Context(), middleware.GetCustomerID(c), filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list sales")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sales": saleViews(sales)})
}

func (h *SaleHandler) PaymentDetails(c *gin.Context) {
	c.JSON(http.StatusOK, h.paymentDetails)
}

func requestContext(c *gin.Context) context.Context {
	return service.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
}

func saleFilterFromQuery(c *gin.Context) (domain.SaleFilter, error) {
	var filter domain.SaleFilter
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, &domain.ValidationError{Field: "limit", Message: "must be a positive integer"}
		}
		filter.Limit = limit
	}
	return filter, nil
}

func saleViews(sales []*domain.Sale) []domain.SaleView {
	views := make([]domain.SaleView, 0, len(sales))
	for _, s := range sales {
		views = append(views, domain.NewSaleView(s))
	}
	return views
}
