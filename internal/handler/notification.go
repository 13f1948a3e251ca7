package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deal_room/internal/service"
	"deal_room/pkg/logger"
)

const defaultNotificationLimit = 20

type NotificationHandler struct {
	notificationService service.NotificationService
	log                 logger.Logger
}

func NewNotificationHandler(notificationService service.NotificationService, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		log:                 log,
	}
}

// List отдает входящие пользователя, новые первыми.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit, err := queryInt64(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if limit == 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := h.notificationService.ListForUser(c.Request.Context(), actor.UserID, int(limit))
	if err != nil {
		h.log.Error("Failed to list notifications", "error", err, "user_id", actor.UserID)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, notifications)
}
