package service

import (
	"context"
	"time"

	"deal_room/internal/domain"
	"deal_room/internal/repository"
	"deal_room/pkg/logger"
)

const dispatchTimeout = 3 * time.Second

// NotificationService рассылает события комнаты. Ошибки доставки только логируются:
// мутация уже сохранена и не должна из-за них падать.
type NotificationService interface {
	Dispatch(ctx context.Context, events []domain.Event)
	ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}

type notificationService struct {
	broadcast repository.BroadcastRepository
	inbox     repository.NotificationRepository
	log       logger.Logger
}

func NewNotificationService(broadcast repository.BroadcastRepository, inbox repository.NotificationRepository, log logger.Logger) NotificationService {
	return &notificationService{
		broadcast: broadcast,
		inbox:     inbox,
		log:       log,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	// отмена запроса клиентом не должна обрывать рассылку
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	for _, event := range events {
		s.dispatchOne(ctx, event)
	}
}

func (s *notificationService) dispatchOne(ctx context.Context, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Notification dispatch panicked", "event", event.Name, "room_id", event.RoomID, "panic", r)
		}
	}()

	if err := s.broadcast.Publish(ctx, repository.RoomChannel(event.RoomID), string(event.Name), event.Payload); err != nil {
		s.log.Warn("Failed to broadcast to deal room", "error", err, "event", event.Name, "room_id", event.RoomID)
	}

	for _, userID := range event.Recipients {
		if userID == "" || userID == event.Actor.UserID {
			continue
		}
		n := domain.NewNotification(userID, event)
		if err := s.inbox.Push(ctx, n); err != nil {
			s.log.Warn("Failed to store notification", "error", err, "user_id", userID)
		}
		if err := s.broadcast.Publish(ctx, repository.UserChannel(userID), string(event.Name), n); err != nil {
			s.log.Warn("Failed to notify user", "error", err, "user_id", userID, "event", event.Name)
		}
	}
}

func (s *notificationService) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	return s.inbox.List(ctx, userID, limit)
}
