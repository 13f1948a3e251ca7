package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification: запись во входящих пользователя.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	RoomID    uuid.UUID `json:"room_id"`
	Event     EventName `json:"event"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNotification(userID string, e Event) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		RoomID:    e.RoomID,
		Event:     e.Name,
		Title:     e.Title,
		Body:      e.Body,
		CreatedAt: e.OccurredAt,
	}
}
