package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"deal_room/internal/domain"
	"deal_room/internal/service"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit считает запросы отдельно для каждого пользователя, без него по IP.
func (m *RateLimitMiddleware) Limit(rule domain.RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(ContextUserID)
		if subject == "" {
			subject = c.ClientIP()
		}

		decision, err := m.rateLimitService.Allow(c.Request.Context(), rule, subject)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err, "scope", rule.Scope)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if rule.Enabled() {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperrors.ErrRateLimited.Error()})
			return
		}

		c.Next()
	}
}
