package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"idol-server/internal/models"
)

func TestRequestID_TagsOperationWithRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())

	var operation string
	r.PUT("/api/v1/sessions/:id/close", func(c *gin.Context) {
		operation = models.OperationFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/sessions/42/close", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "PUT /api/v1/sessions/:id/close", operation)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestOperationFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unnamed", models.OperationFromContext(req.Context()))
}
