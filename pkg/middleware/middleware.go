// Package middleware holds the gin middleware shared by every route.
//
// Identity comes from headers set by the authenticating gateway in front of
// this service (reachable only over mTLS when TLS is enabled) and is trusted
// as given.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID  = "X-Request-ID"
	HeaderCustomerID = "X-Customer-ID"
	HeaderUserRole   = "X-User-Role"

	RoleAdmin = "admin"

	ctxRequestID  = "request_id"
	ctxCustomerID = "customer_id"
	ctxRole       = "role"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", GetRequestID(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// Identity copies the gateway identity headers into the gin context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderCustomerID)); id != "" {
			c.Set(ctxCustomerID, id)
		}
		if role := strings.TrimSpace(c.GetHeader(HeaderUserRole)); role != "" {
			c.Set(ctxRole, strings.ToLower(role))
		}
		c.Next()
	}
}

func RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCustomerID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Customer identity required",
			})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin role required",
			})
			return
		}
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func GetCustomerID(c *gin.Context) string {
	return c.GetString(ctxCustomerID)
}
