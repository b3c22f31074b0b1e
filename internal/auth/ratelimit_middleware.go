package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/ratelimit"
)

// RateLimitMiddleware limits each authenticated user separately within scope.
// Requests without a user fall back to the client IP. A limiter error other
// than ErrRateLimited lets the request through.
func RateLimitMiddleware(limiter ratelimit.Keyed, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		err := limiter.Allow(c.Request.Context(), scope+":"+key)
		switch {
		case err == nil:
		case errors.Is(err, ratelimit.ErrRateLimited):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Slow down! You're sending messages too fast."})
			return
		default:
			logrus.WithFields(logrus.Fields{
				"function": "auth.RateLimitMiddleware",
				"scope":    scope,
				"error":    err.Error(),
			}).Warn("Rate limiter unavailable")
		}

		c.Next()
	}
}
