package service

import (
	"deal_room/internal/config"
	"deal_room/internal/repository"
	"deal_room/pkg/logger"
)

type Services struct {
	DealRoom     DealRoomService
	Notification NotificationService
	Analysis     TermAnalysisService
	RateLimit    RateLimitService
	Files        FileStorage
}

func NewServices(repos *repository.Repositories, files FileStorage, cfg *config.Config, log logger.Logger) *Services {
	notification := NewNotificationService(repos.Broadcast, repos.Notification, log)
	analysis := NewTermAnalysisService(NewRuleAnalyzer(), log)

	services := &Services{
		DealRoom:     NewDealRoomService(repos.DealRoom, notification, files, analysis, SystemClock(), log),
		Notification: notification,
		Analysis:     analysis,
		RateLimit:    NewRateLimitService(repos.RateLimit, log),
		Files:        files,
	}

	log.Info("Services initialized", "environment", cfg.Environment, "storage", cfg.Storage.Driver)
	return services
}
