package middleware

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-api/pkg/logger"
	"user-api/pkg/ratelimit"
)

// RateLimiter returns a Gin middleware that throttles requests per route and client IP
func RateLimiter(limiter *ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	if !limiter.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	retryAfter := "1"
	if rps := limiter.Config().RequestsPerSecond; rps > 0 {
		retryAfter = fmt.Sprintf("%d", int(math.Ceil(1/rps)))
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", c.Request.Method, path, c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail open
			logger.WithContext(c.Request.Context(), log).Warn("rate limiter redis error, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			logger.WithContext(c.Request.Context(), log).Warn("rate limit exceeded", zap.String("key", key))
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Request was throttled."})
			return
		}

		c.Next()
	}
}
