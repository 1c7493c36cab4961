package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fieldserve/booking-api/pkg/httputil"
)

// RateLimiter caps the request rate across the whole API with a single
// shared token bucket. Draft and booking traffic is low-volume enough
// that per-client buckets are not worth the bookkeeping.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.Response{
				Success: false,
				Error: &httputil.Error{
					Code:    http.StatusTooManyRequests,
					Message: "too many requests, slow down",
				},
			})
			return
		}
		c.Next()
	}
}
