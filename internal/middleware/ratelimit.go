package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/response"
)

// Counter increments a windowed counter.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// ErrRateLimited is returned when a client exceeds its budget.
var ErrRateLimited = &apperrors.APIError{
	Code:       "rate_limited",
	Message:    "Too many requests, please try again later",
	StatusCode: http.StatusTooManyRequests,
}

// RateLimit limits requests per client IP and route. A nil counter disables it.
func RateLimit(counter Counter, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || cfg.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())
		windowDuration := time.Minute

		count, err := counter.IncrWithExpire(c.Request.Context(), key, windowDuration)
		if err != nil {
			// On Redis error, allow the request
			c.Next()
			return
		}

		limit := cfg.RequestsPerMinute
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(windowDuration).Unix(), 10))

		if int(count) > limit+cfg.BurstSize {
			c.Header("Retry-After", strconv.Itoa(60))
			response.Error(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}
