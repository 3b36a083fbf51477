package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/pkg/response"
)

// RateLimiter counts requests per caller and scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope, callerID string, now time.Time) error
}

// RateLimit applies the daily ceiling of scope to the authenticated caller,
// falling back to the client IP. It must run after JWT.
func RateLimit(limiter RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		caller := c.ClientIP()
		if claims, ok := Claims(c); ok {
			caller = claims.UserID
		}
		if err := limiter.Allow(c.Request.Context(), scope, caller, time.Now()); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
