package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"idol-server/internal/models"
)

// PlayerKeyGinKey - ключ gin.Context для идентификатора игрока.
const PlayerKeyGinKey = "playerKey"

// TokenVerifier проверяет строку токена и возвращает claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// GinAuth проверяет bearer-токен и кладет идентификатор игрока в контекст запроса.
// Для websocket токен можно передать в query-параметре token: браузер не дает
// выставить заголовок при апгрейде.
func GinAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			log.Debug("Token missing", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code: models.ErrCodeUnauthorized, Message: "Unauthorized: missing token",
			})
			return
		}

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			resp := models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized: invalid token"}
			if errors.Is(err, models.ErrTokenExpired) {
				resp = models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: "Unauthorized: token expired"}
			}
			log.Warn("Token verification failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
			return
		}

		playerKey := claims.PlayerKey()
		c.Set(PlayerKeyGinKey, playerKey)
		c.Request = c.Request.WithContext(models.WithPlayerKey(c.Request.Context(), playerKey))
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// PlayerKey возвращает идентификатор игрока, установленный GinAuth.
func PlayerKey(c *gin.Context) string {
	if key, ok := models.PlayerKeyFromContext(c.Request.Context()); ok {
		return key
	}
	return c.GetString(PlayerKeyGinKey)
}
