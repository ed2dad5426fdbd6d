package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newRouter(t *testing.T, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(zaptest.NewLogger(t)), Identity())
	handlers := append(guards, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"request_id":  GetRequestID(c),
			"customer_id": GetCustomerID(c),
		})
	})
	r.GET("/x", handlers...)
	return r
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
}

func TestRequireCustomer(t *testing.T) {
	r := newRouter(t, RequireCustomer())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderCustomerID, "C1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customer_id":"C1"`)
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(t, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderUserRole, "customer")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderUserRole, "Admin")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
