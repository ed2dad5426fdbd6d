package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *service.ProductService
	logger         *zap.Logger
}

func NewProductHandler(productService *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create product")
		return
	}

	c.JSON(http.StatusCreated, domain.NewProductResponse(product))
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get product")
		return
	}

	c.JSON(http.StatusOK, domain.NewProductResponse(product))
}

func (h *ProductHandler) UpdatePrice(c *gin.Context) {
	var req domain.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	product, err := h.productService.UpdatePrice(c.Request.Context(), c.Param("id"), req.Price)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update price")
		return
	}

	c.JSON(http.StatusOK, domain.NewProductResponse(product))
}
