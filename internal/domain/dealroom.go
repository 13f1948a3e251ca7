package domain

import (
	"time"

	"github.com/google/uuid"
)

type DealStatus string

const (
	DealStatusPending      DealStatus = "pending"
	DealStatusActive       DealStatus = "active"
	DealStatusNegotiation  DealStatus = "negotiation"
	DealStatusDueDiligence DealStatus = "due_diligence"
	DealStatusSigned       DealStatus = "signed"
	DealStatusClosed       DealStatus = "closed"
	DealStatusRejected     DealStatus = "rejected"
)

type Role string

const (
	RoleFounder  Role = "founder"
	RoleInvestor Role = "investor"
	RoleSystem   Role = "system"
)

func (r Role) IsParticipantRole() bool {
	return r == RoleFounder || r == RoleInvestor
}

// SystemUserID зарезервирован за самим агрегатом и никогда не бывает участником.
const SystemUserID = "system"

// Actor: тот, от чьего имени выполняется операция.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

var SystemActor = Actor{UserID: SystemUserID, Name: "System", Role: RoleSystem}

func (a Actor) IsSystem() bool {
	return a.UserID == SystemUserID
}

// DealRoom: снапшот переговорной комнаты. Операции над ним в dealroom_ops.go
// никогда не меняют получатель и возвращают новый снапшот.
type DealRoom struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      string         `json:"project_id"`
	ProjectName    string         `json:"project_name"`
	FounderUserID  string         `json:"founder_user_id"`
	FounderName    string         `json:"founder_name"`
	InvestorUserID string         `json:"investor_user_id"`
	InvestorName   string         `json:"investor_name"`
	Status         DealStatus     `json:"status"`
	Terms          DealTerms      `json:"terms"`
	Messages       []Message      `json:"messages"`
	Activities     []Activity     `json:"activities"`
	Documents      []DocumentInfo `json:"documents"`
	IsArchived     bool           `json:"is_archived"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Version        int64          `json:"version"`
	Seq            int64          `json:"seq"`
}

// Clone копирует срезы. Условия, сообщения и записи журнала неизменяемы,
// поэтому вложенные значения разделяются.
func (r *DealRoom) Clone() *DealRoom {
	c := *r
	c.Messages = append([]Message(nil), r.Messages...)
	c.Activities = append([]Activity(nil), r.Activities...)
	c.Documents = append([]DocumentInfo(nil), r.Documents...)
	return &c
}

// RoleOf возвращает роль пользователя в комнате.
func (r *DealRoom) RoleOf(userID string) (Role, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == r.FounderUserID:
		return RoleFounder, true
	case userID == r.InvestorUserID:
		return RoleInvestor, true
	}
	return "", false
}

// Counterpart: второй участник сделки.
func (r *DealRoom) Counterpart(userID string) string {
	switch userID {
	case r.FounderUserID:
		return r.InvestorUserID
	case r.InvestorUserID:
		return r.FounderUserID
	}
	return ""
}

func (r *DealRoom) ParticipantIDs() []string {
	return []string{r.FounderUserID, r.InvestorUserID}
}

func (r *DealRoom) FindDocument(id uuid.UUID) (DocumentInfo, bool) {
	for _, d := range r.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return DocumentInfo{}, false
}

// IsOpen: комната попадает в «активный» список.
func (r *DealRoom) IsOpen() bool {
	return !r.IsArchived && !r.Status.IsTerminal()
}

// computeLastActivity пересчитывает LastActivityAt как максимум всех отметок времени.
func (r *DealRoom) computeLastActivity() time.Time {
	latest := r.UpdatedAt
	for _, m := range r.Messages {
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	for _, a := range r.Activities {
		if a.Timestamp.After(latest) {
			latest = a.Timestamp
		}
	}
	return latest
}

// stamp выдает отметку времени, которая не меньше последней в комнате.
func (r *DealRoom) stamp(now time.Time) time.Time {
	now = now.UTC()
	if latest := r.computeLastActivity(); now.Before(latest) {
		return latest
	}
	return now
}

func (r *DealRoom) nextSeq() int64 {
	r.Seq++
	return r.Seq
}

func (r *DealRoom) touch(at time.Time) {
	r.UpdatedAt = at
	r.LastActivityAt = r.computeLastActivity()
}
