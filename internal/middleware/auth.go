package middleware

import (
	"github.com/gin-gonic/gin"

	"deal_room/internal/domain"
)

const (
	ContextUserID      = "user_id"
	ContextDisplayName = "display_name"
	ContextRole        = "role"

	// QueryTokenParam: параметр с JWT для WebSocket, в логи не попадает.
	QueryTokenParam = "token"
)

// CurrentActor собирает Actor из того, что положил IdentityMiddleware.
func CurrentActor(c *gin.Context) (domain.Actor, bool) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return domain.Actor{}, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(domain.Role)
	return domain.Actor{
		UserID: userID,
		Name:   c.GetString(ContextDisplayName),
		Role:   r,
	}, true
}
