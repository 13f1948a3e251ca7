package handler

import (
	"net/http"

	"deal_room/internal/config"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	environment    string
	storageDriver  string
	maxUploadBytes int64
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		environment:    cfg.Environment,
		storageDriver:  cfg.Storage.Driver,
		maxUploadBytes: cfg.S3.MaxUploadBytes,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "deal-room",
	})
}

// ServerInfo возвращает настройки, которые нужны клиенту
func (h *HealthHandler) ServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"environment":      h.environment,
		"storage":          h.storageDriver,
		"max_upload_bytes": h.maxUploadBytes,
		"api_base":         "/api/v1",
		"ws_path":          "/ws/deal-rooms/:id",
	})
}
