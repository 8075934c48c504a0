package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/ratelimit"
)

// RateLimit guards an endpoint per caller IP. The limiter itself never
// blocks a request: a backend error fails open.
func (s *Server) RateLimit(cfg ratelimit.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := ratelimit.IdentifierFromRequest(c.Request)
		result, err := s.limiter.Check(c.Request.Context(), identifier, cfg)
		if err != nil {
			s.log.Warn("rate limit check failed, allowing request",
				zap.String("prefix", cfg.Prefix),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			if s.metrics != nil {
				s.metrics.RateLimitDenied.WithLabelValues(cfg.Prefix).Inc()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate_limited",
				"message":    "too many requests, try again later",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}
