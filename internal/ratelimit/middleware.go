package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
)

// IPRateLimitMiddleware rejects clients that exceed the per-minute limit.
// Limiter failures let the request through.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}

			retryAfter := retrySeconds(result.RetryAfter)
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			appErr := apperrors.NewRateLimitError(
				fmt.Sprintf("Rate limit of %d requests per minute exceeded", result.Limit),
				strconv.Itoa(retryAfter)+"s",
			)
			_ = c.Error(appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
			return
		}

		c.Next()
	}
}

// HandleRateLimitStatus reports the caller's current budget without
// consuming it.
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip":        c.ClientIP(),
			"limit":     rl.config.IPLimitPerMin,
			"period":    "1 minute",
			"remaining": rl.remaining("ratelimit:ip:" + c.ClientIP()),
			"limiter":   rl.GetStats(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// remaining is only known for in-memory buckets; -1 means unknown.
func (rl *RateLimiter) remaining(key string) int {
	if rl.redisLimiter != nil {
		return -1
	}
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	rl.mu.Unlock()
	if !ok {
		return rl.config.IPLimitPerMin
	}
	return max(int(math.Floor(b.limiter.Tokens())), 0)
}

// retrySeconds rounds up so clients never retry early.
func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
