package domain

import (
	"time"

	"github.com/google/uuid"
)

const MaxMessageLength = 10000

// Message: запись в чате комнаты. Системные сообщения создает только агрегат.
type Message struct {
	ID              uuid.UUID   `json:"id"`
	Seq             int64       `json:"seq"`
	SenderID        string      `json:"sender_id"`
	SenderName      string      `json:"sender_name"`
	SenderRole      Role        `json:"sender_role"`
	Content         string      `json:"content"`
	Timestamp       time.Time   `json:"timestamp"`
	IsSystemMessage bool        `json:"is_system_message"`
	Attachments     []uuid.UUID `json:"attachments,omitempty"`
}

func newSystemMessage(seq int64, content string, at time.Time) Message {
	return Message{
		ID:              uuid.New(),
		Seq:             seq,
		SenderID:        SystemActor.UserID,
		SenderName:      SystemActor.Name,
		SenderRole:      SystemActor.Role,
		Content:         content,
		Timestamp:       at,
		IsSystemMessage: true,
	}
}

// MessagesAfter возвращает сообщения с Seq больше afterSeq.
func (r *DealRoom) MessagesAfter(afterSeq int64) []Message {
	out := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	return out
}
