package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"deal_room/pkg/logger"
)

const (
	RoomChannelPattern = "deal-room:%s"
	UserChannelPattern = "user:%s:notifications"

	subscriptionBuffer = 64
)

func RoomChannel(roomID uuid.UUID) string {
	return fmt.Sprintf(RoomChannelPattern, roomID.String())
}

func UserChannel(userID string) string {
	return fmt.Sprintf(UserChannelPattern, userID)
}

// Envelope: то, что уходит в канал Redis и дальше в сокет клиента.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

func NewEnvelope(channel, event string, payload any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Channel: channel, Event: event, Payload: raw, SentAt: at.UTC()}, nil
}

type Subscription interface {
	Envelopes() <-chan Envelope
	Close() error
}

type BroadcastRepository interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Subscribe(ctx context.Context, channels ...string) Subscription
}

type broadcastRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewBroadcastRepository(rdb *redis.Client, log logger.Logger) BroadcastRepository {
	return &broadcastRepository{rdb: rdb, log: log}
}

func (r *broadcastRepository) Publish(ctx context.Context, channel, event string, payload any) error {
	envelope, err := NewEnvelope(channel, event, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := r.rdb.Publish(ctx, channel, data).Err(); err != nil {
		r.log.Error("Failed to publish event", "error", err, "channel", channel, "event", event)
		return err
	}
	return nil
}

func (r *broadcastRepository) Subscribe(ctx context.Context, channels ...string) Subscription {
	pubsub := r.rdb.Subscribe(ctx, channels...)
	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Envelope, subscriptionBuffer),
	}
	go sub.pump(ctx, r.log)
	return sub
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan Envelope
}

func (s *redisSubscription) Envelopes() <-chan Envelope {
	return s.out
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

// pump разбирает сообщения Redis, пока не закроется подписка или контекст.
func (s *redisSubscription) pump(ctx context.Context, log logger.Logger) {
	defer close(s.out)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				log.Warn("Skipping malformed envelope", "error", err, "channel", msg.Channel)
				continue
			}
			select {
			case s.out <- envelope:
			case <-ctx.Done():
				return
			}
		}
	}
}
