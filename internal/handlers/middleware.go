package handlers

import (
	"net/http"

	"commodity-price-portal/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// AccountHeader carries the caller's account id, set by the upstream auth proxy
const AccountHeader = "X-Account-ID"

// RateLimitMiddleware returns a Gin middleware that enforces rate limiting
func RateLimitMiddleware(limiter *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.AllowRequest() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
				"stats":   limiter.GetStats(),
			})
			return
		}
		c.Next()
	}
}
