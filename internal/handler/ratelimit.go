package handler

import (
	"net/http"
	"time"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"idol-server/internal/middleware"
	"idol-server/internal/models"
)

// NewRateLimitMiddleware ограничивает число запросов игрока в минуту.
// Ключ - идентификатор игрока, поэтому middleware ставится после GinAuth;
// без игрока в контексте используется IP.
func NewRateLimitMiddleware(redisClient *redis.Client, perMinute uint, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("RateLimiter")
	store := rateli.RedisStore(&rateli.RedisOptions{
		RedisClient: redisClient,
		Rate:        time.Minute,
		Limit:       perMinute,
	})

	return rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			log.Warn("Rate limit exceeded",
				zap.String("playerKey", middleware.PlayerKey(c)),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    models.ErrCodeTooSoon,
				Message: "Too many requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: rateLimitKey,
	})
}

func rateLimitKey(c *gin.Context) string {
	if key := middleware.PlayerKey(c); key != "" {
		return "player:" + key
	}
	return "ip:" + c.ClientIP()
}
