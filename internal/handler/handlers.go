package handler

import (
	"github.com/gin-gonic/gin"

	"deal_room/internal/config"
	"deal_room/internal/repository"
	"deal_room/internal/service"
	"deal_room/pkg/logger"
)

type Handlers struct {
	Health       *HealthHandler
	DealRoom     *DealRoomHandler
	Notification *NotificationHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(cfg),
		DealRoom:     NewDealRoomHandler(services.DealRoom, cfg.S3.MaxUploadBytes, log),
		Notification: NewNotificationHandler(services.Notification, log),
		WebSocket:    NewWebSocketHandler(services.DealRoom, repos.Broadcast, cfg.Server.AllowedOrigins, log),
	}
}

// RouteMiddleware: middleware, которые навешиваются на отдельные группы и маршруты.
type RouteMiddleware struct {
	Auth         gin.HandlerFunc
	SocketAuth   gin.HandlerFunc
	MessageLimit gin.HandlerFunc
	UploadLimit  gin.HandlerFunc
}

func (h *Handlers) Register(router *gin.Engine, mw RouteMiddleware) {
	router.GET("/health", h.Health.Check)
	router.GET("/server-info", h.Health.ServerInfo)

	v1 := router.Group("/api/v1")
	v1.Use(mw.Auth)
	{
		rooms := v1.Group("/deal-rooms")
		{
			rooms.GET("", h.DealRoom.List)
			rooms.POST("", h.DealRoom.Create)
			rooms.GET("/:id", h.DealRoom.GetByID)

			rooms.POST("/:id/messages", mw.MessageLimit, h.DealRoom.SendMessage)
			rooms.GET("/:id/messages", h.DealRoom.GetMessages)

			rooms.PUT("/:id/terms", h.DealRoom.UpdateTerms)
			rooms.GET("/:id/terms/history", h.DealRoom.GetTermsHistory)
			rooms.GET("/:id/analysis", h.DealRoom.Analyze)

			rooms.PUT("/:id/status", h.DealRoom.UpdateStatus)
			rooms.POST("/:id/archive", h.DealRoom.ToggleArchive)

			rooms.POST("/:id/documents", mw.UploadLimit, h.DealRoom.UploadDocument)
			rooms.GET("/:id/documents", h.DealRoom.ListDocuments)
			rooms.GET("/:id/documents/:documentId", h.DealRoom.GetDocument)

			rooms.GET("/:id/activities", h.DealRoom.GetActivities)
			rooms.GET("/:id/audit/verify", h.DealRoom.VerifyAudit)
		}

		v1.GET("/notifications", h.Notification.List)
	}

	router.GET("/ws/deal-rooms/:id", mw.SocketAuth, h.WebSocket.HandleDealRoom)
}
