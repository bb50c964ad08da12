package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/response"
)

// RateLimitConfig bounds request rates per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimit applies a fixed-window counter in Redis, keyed by client IP
// and route. Intended for the auth endpoints where credential stuffing
// and OTP spamming are the concern. When Redis is unavailable the
// middleware fails open.
func RateLimit(client *redis.Client, logger *zap.Logger, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Requests <= 0 {
		cfg.Requests = 20
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		window := time.Now().Unix() / int64(cfg.Window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", c.ClientIP(), c.FullPath(), window)

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(c.Request.Context(), key, cfg.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.Error(err))
			}
		}

		if count > int64(cfg.Requests) {
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
