package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"idol-server/internal/models"
)

func fakeVerifier(ctx context.Context, token string) (*models.Claims, error) {
	switch token {
	case "good":
		c := &models.Claims{}
		c.Subject = "player-1"
		return c, nil
	case "old":
		return nil, models.ErrTokenExpired
	default:
		return nil, models.ErrTokenInvalid
	}
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), GinAuth(fakeVerifier, zap.NewNop()))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, PlayerKey(c))
	})
	return r
}

func TestGinAuth(t *testing.T) {
	r := newAuthRouter()

	tests := []struct {
		name   string
		target string
		header string
		status int
		body   string
	}{
		{"bearer header", "/me", "Bearer good", http.StatusOK, "player-1"},
		{"query token", "/me?token=good", "", http.StatusOK, "player-1"},
		{"missing", "/me", "", http.StatusUnauthorized, "missing token"},
		{"malformed header", "/me", "Token good", http.StatusUnauthorized, "missing token"},
		{"expired", "/me", "Bearer old", http.StatusUnauthorized, "token expired"},
		{"invalid", "/me", "Bearer nope", http.StatusUnauthorized, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}
