package domain

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityMessage      ActivityType = "message"
	ActivityDocument     ActivityType = "document"
	ActivityTermUpdate   ActivityType = "term_update"
	ActivityStatusChange ActivityType = "status_change"
	ActivityUserJoined   ActivityType = "user_joined"
)

// ActivityDetails: полезная нагрузка записи журнала. Заполнены только поля ее типа.
type ActivityDetails struct {
	PreviousStatus DealStatus `json:"previous_status,omitempty"`
	NewStatus      DealStatus `json:"new_status,omitempty"`

	PreviousTerms *DealTerms `json:"previous_terms,omitempty"`
	NewTerms      *DealTerms `json:"new_terms,omitempty"`

	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	DocumentName string     `json:"document_name,omitempty"`
	Action       string     `json:"action,omitempty"`

	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// Activity: неизменяемая запись журнала аудита, сцепленная хешами с предыдущей.
type Activity struct {
	ID           uuid.UUID       `json:"id"`
	Seq          int64           `json:"seq"`
	Type         ActivityType    `json:"type"`
	ActorUserID  string          `json:"actor_user_id"`
	ActorName    string          `json:"actor_name"`
	ActorRole    Role            `json:"actor_role"`
	Timestamp    time.Time       `json:"timestamp"`
	Details      ActivityDetails `json:"details"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
}

func (r *DealRoom) ActivitiesAfter(afterSeq int64) []Activity {
	out := make([]Activity, 0, len(r.Activities))
	for _, a := range r.Activities {
		if a.Seq > afterSeq {
			out = append(out, a)
		}
	}
	return out
}

// TermsRevision: одна правка условий, восстановленная из журнала.
type TermsRevision struct {
	At       time.Time `json:"at"`
	Actor    Actor     `json:"actor"`
	Previous DealTerms `json:"previous"`
	New      DealTerms `json:"new"`
}

// TermsHistory восстанавливает историю условий только по записям term_update.
func (r *DealRoom) TermsHistory() []TermsRevision {
	var history []TermsRevision
	for _, a := range r.Activities {
		if a.Type != ActivityTermUpdate {
			continue
		}
		rev := TermsRevision{
			At:    a.Timestamp,
			Actor: Actor{UserID: a.ActorUserID, Name: a.ActorName, Role: a.ActorRole},
		}
		if a.Details.PreviousTerms != nil {
			rev.Previous = *a.Details.PreviousTerms
		}
		if a.Details.NewTerms != nil {
			rev.New = *a.Details.NewTerms
		}
		history = append(history, rev)
	}
	return history
}
