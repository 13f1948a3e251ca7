package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deal_room/internal/domain"
	"deal_room/pkg/logger"
)

const (
	NotificationInboxKeyPattern = "user:%s:inbox"
	NotificationInboxSize       = 100
	NotificationTTL             = 7 * 24 * time.Hour
)

func NotificationInboxKey(userID string) string {
	return fmt.Sprintf(NotificationInboxKeyPattern, userID)
}

type NotificationRepository interface {
	Push(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}

type notificationRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewNotificationRepository(rdb *redis.Client, log logger.Logger) NotificationRepository {
	return &notificationRepository{rdb: rdb, log: log}
}

// Push кладет уведомление в начало списка, обрезает его и продлевает TTL.
func (r *notificationRepository) Push(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := NotificationInboxKey(n.UserID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, NotificationInboxSize-1)
		pipe.Expire(ctx, key, NotificationTTL)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to push notification", "error", err, "user_id", n.UserID)
		return err
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > NotificationInboxSize {
		limit = NotificationInboxSize
	}

	items, err := r.rdb.LRange(ctx, NotificationInboxKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		r.log.Error("Failed to list notifications", "error", err, "user_id", userID)
		return nil, err
	}

	notifications := make([]*domain.Notification, 0, len(items))
	for _, item := range items {
		n := &domain.Notification{}
		if err := json.Unmarshal([]byte(item), n); err != nil {
			r.log.Warn("Skipping malformed notification", "error", err, "user_id", userID)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
