package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"deal_room/pkg/logger"
)

type Repositories struct {
	DealRoom     DealRoomRepository
	Broadcast    BroadcastRepository
	Notification NotificationRepository
	RateLimit    RateLimitRepository
}

// NewRepositories без пула Postgres хранит комнаты в памяти процесса.
func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Broadcast:    NewBroadcastRepository(redis, log),
		Notification: NewNotificationRepository(redis, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}

	if db != nil {
		repos.DealRoom = NewDealRoomRepository(db, log)
		log.Info("Deal room repository initialized", "driver", "postgres")
	} else {
		repos.DealRoom = NewMemoryDealRoomRepository()
		log.Warn("Deal room repository uses in-memory storage")
	}

	return repos
}
