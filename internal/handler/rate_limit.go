package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/dto"
	"github.com/prperemyshlev/booking-service/internal/service"
	"go.uber.org/zap"
)

// RateLimitMiddleware creates a rate limiting middleware. Limiter outages
// let the request through.
func RateLimitMiddleware(limiter service.Limiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining, _ := limiter.Remaining(ctx, key, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP
func IPBasedKey(c *gin.Context) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		first, _, _ := strings.Cut(ip, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	return "ip:" + c.ClientIP()
}

// PrincipalKey limits authenticated callers per user and anonymous callers per IP
func PrincipalKey(c *gin.Context) string {
	if principal := PrincipalFrom(c); principal != nil {
		return "user:" + principal.UserID + ":" + c.FullPath()
	}
	return IPBasedKey(c) + ":" + c.FullPath()
}
