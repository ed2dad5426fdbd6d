package handler

import (
	"errors"
	"net/http"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/service"
	"github.com/cloud-wave-best-zizon/sale-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors to HTTP responses. Anything unrecognised
// is logged and reported as a 500 with the given message.
func respondError(c *gin.Context, logger *zap.Logger, err error, message string) {
	var (
		short      *domain.InsufficientStockError
		invalid    *domain.InvalidTransitionError
		validation *domain.ValidationError
	)

	switch {
	case errors.Is(err, domain.ErrCompensationFailed):
		logger.Error(message,
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Bool("operator_action_required", true),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": message,
		})

	case errors.As(err, &short):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Insufficient stock",
			"product_id": short.ProductID,
			"available":  short.Available,
			"requested":  short.Requested,
		})

	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Error(),
			"field": validation.Field,
		})

	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Invalid state transition",
			"status": invalid.From,
			"event":  invalid.Event,
		})

	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Sale was modified concurrently",
		})

	case errors.Is(err, service.ErrProductExists):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Product already exists",
		})

	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})

	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Sale not found",
		})

	default:
		logger.Error(message,
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": message,
		})
	}
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Info("Invalid request",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request format",
	})
}
