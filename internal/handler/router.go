package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/sale-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductHandler
	Sales    *SaleHandler
	Admin    *AdminHandler
}

func NewRouter(h Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Identity())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})
		v1.GET("/products/:id", h.Products.GetProduct)
		v1.GET("/payment-details", h.Sales.PaymentDetails)
	}

	customer := v1.Group("", middleware.RequireCustomer())
	{
		customer.POST("/checkout", h.Sales.Checkout)
		customer.POST("/sales/:id/proof", h.Sales.UploadProof)
		customer.GET("/sales/:id", h.Sales.GetSale)
		customer.GET("/me/sales", h.Sales.ListMySales)
	}

	admin := v1.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/products", h.Products.CreateProduct)
		admin.PATCH("/products/:id/price", h.Products.UpdatePrice)

		admin.GET("/sales", h.Admin.ListSales)
		admin.GET("/sales/:id", h.Admin.GetSale)
		admin.POST("/sales/:id/approve", h.Admin.Approve)
		admin.POST("/sales/:id/reject", h.Admin.Reject)
		admin.POST("/sales/:id/dispatch", h.Admin.Dispatch)
		admin.POST("/sales/:id/deliver", h.Admin.MarkDelivered)
	}

	return router
}
