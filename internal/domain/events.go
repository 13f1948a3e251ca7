package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventName string

const (
	EventDealRoomCreated EventName = "deal-room-created"
	EventNewMessage      EventName = "new-message"
	EventNewDocument     EventName = "new-document"
	EventTermsUpdated    EventName = "terms-updated"
	EventStatusChanged   EventName = "status-changed"
)

// Event: факт, который агрегат отдает наружу для рассылки.
// Recipients получают персональное уведомление, комната получает Payload целиком.
type Event struct {
	Name       EventName `json:"event"`
	RoomID     uuid.UUID `json:"room_id"`
	Actor      Actor     `json:"actor"`
	Recipients []string  `json:"-"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Change: результат операции: новый снапшот и события для рассылки.
type Change struct {
	Room     *DealRoom
	Events   []Event
	Message  *Message
	Activity *Activity
	Document *DocumentInfo
}

type DealRoomCreatedPayload struct {
	ProjectID   string     `json:"project_id"`
	ProjectName string     `json:"project_name"`
	Status      DealStatus `json:"status"`
	CreatedBy   Actor      `json:"created_by"`
}

type TermsUpdatedPayload struct {
	Terms     DealTerms `json:"terms"`
	Summary   string    `json:"summary"`
	UpdatedBy Actor     `json:"updated_by"`
}

type StatusChangedPayload struct {
	PreviousStatus DealStatus `json:"previous_status"`
	NewStatus      DealStatus `json:"new_status"`
	ChangedBy      Actor      `json:"changed_by"`
}
