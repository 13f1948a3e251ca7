package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "deal_room/pkg/errors"
)

const notificationPreviewLength = 140

type CreateParams struct {
	ProjectID      string
	ProjectName    string
	FounderUserID  string
	FounderName    string
	InvestorUserID string
	InvestorName   string
	InitialTerms   DealTerms
}

// NewDealRoom открывает комнату в статусе pending. Инициатор должен быть одной из сторон.
func NewDealRoom(p CreateParams, initiator Actor, now time.Time) (*Change, error) {
	if p.FounderUserID == "" || p.InvestorUserID == "" || p.FounderUserID == p.InvestorUserID ||
		p.FounderUserID == SystemUserID || p.InvestorUserID == SystemUserID {
		return nil, apperrors.ErrInvalidParticipants
	}
	if strings.TrimSpace(p.ProjectID) == "" {
		return nil, apperrors.NewValidationError("project_id", "must not be empty")
	}

	now = now.UTC()
	room := &DealRoom{
		ID:             uuid.New(),
		ProjectID:      p.ProjectID,
		ProjectName:    p.ProjectName,
		FounderUserID:  p.FounderUserID,
		FounderName:    p.FounderName,
		InvestorUserID: p.InvestorUserID,
		InvestorName:   p.InvestorName,
		Status:         DealStatusPending,
		Terms:          p.InitialTerms,
		Messages:       []Message{},
		Activities:     []Activity{},
		Documents:      []DocumentInfo{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}

	if err := room.authorize(initiator); err != nil {
		return nil, err
	}
	if !p.InitialTerms.IsEmpty() {
		if err := p.InitialTerms.Validate(); err != nil {
			return nil, err
		}
	}

	initiator = room.resolveActor(initiator)
	act, err := room.appendActivity(ActivityUserJoined, initiator, ActivityDetails{
		UserID:   initiator.UserID,
		UserName: initiator.Name,
		Role:     initiator.Role,
	}, now)
	if err != nil {
		return nil, err
	}
	msg := room.appendSystemMessage(fmt.Sprintf("Deal room for %s opened by %s (%s)",
		projectLabel(room), initiator.Name, initiator.Role), now)
	room.touch(now)

	return &Change{
		Room:     room,
		Message:  &msg,
		Activity: &act,
		Events: []Event{{
			Name:       EventDealRoomCreated,
			RoomID:     room.ID,
			Actor:      initiator,
			Recipients: []string{room.Counterpart(initiator.UserID)},
			Title:      "New deal room",
			Body:       fmt.Sprintf("%s opened a deal room for %s", initiator.Name, projectLabel(room)),
			Payload: DealRoomCreatedPayload{
				ProjectID:   room.ProjectID,
				ProjectName: room.ProjectName,
				Status:      room.Status,
				CreatedBy:   initiator,
			},
			OccurredAt: now,
		}},
	}, nil
}

// SendMessage добавляет сообщение участника. Запись в журнал не создается.
func (r *DealRoom) SendMessage(actor Actor, content string, attachments []uuid.UUID, now time.Time) (*Change, error) {
	if err := r.authorize(actor); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperrors.NewValidationError("content", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
	}
	for _, id := range attachments {
		if _, ok := r.FindDocument(id); !ok {
			return nil, apperrors.NewValidationError("attachments", fmt.Sprintf("document %s does not belong to this deal room", id))
		}
	}

	next := r.Clone()
	actor = next.resolveActor(actor)
	at := next.stamp(now)
	msg := Message{
		ID:          uuid.New(),
		Seq:         next.nextSeq(),
		SenderID:    actor.UserID,
		SenderName:  actor.Name,
		SenderRole:  actor.Role,
		Content:     content,
		Timestamp:   at,
		Attachments: append([]uuid.UUID(nil), attachments...),
	}
	next.Messages = append(next.Messages, msg)
	next.LastActivityAt = next.computeLastActivity()

	return &Change{
		Room:    next,
		Message: &msg,
		Events: []Event{{
			Name:       EventNewMessage,
			RoomID:     next.ID,
			Actor:      actor,
			Recipients: []string{next.Counterpart(actor.UserID)},
			Title:      "New message from " + actor.Name,
			Body:       preview(content),
			Payload:    msg,
			OccurredAt: at,
		}},
	}, nil
}

// UpdateTerms заменяет условия целиком. Разрешено в любом статусе, включая финальные.
func (r *DealRoom) UpdateTerms(actor Actor, terms DealTerms, now time.Time) (*Change, error) {
	if err := r.authorize(actor); err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	next := r.Clone()
	actor = next.resolveActor(actor)
	at := next.stamp(now)
	previous := r.Terms
	next.Terms = terms

	act, err := next.appendActivity(ActivityTermUpdate, actor, ActivityDetails{
		PreviousTerms: &previous,
		NewTerms:      &terms,
	}, at)
	if err != nil {
		return nil, err
	}
	summary := terms.Summary()
	msg := next.appendSystemMessage(fmt.Sprintf("%s (%s) updated the deal terms: %s", actor.Name, actor.Role, summary), at)
	next.touch(at)

	return &Change{
		Room:     next,
		Message:  &msg,
		Activity: &act,
		Events: []Event{{
			Name:       EventTermsUpdated,
			RoomID:     next.ID,
			Actor:      actor,
			Recipients: []string{next.Counterpart(actor.UserID)},
			Title:      "Deal terms updated",
			Body:       fmt.Sprintf("%s proposed new terms: %s", actor.Name, summary),
			Payload:    TermsUpdatedPayload{Terms: terms, Summary: summary, UpdatedBy: actor},
			OccurredAt: at,
		}},
	}, nil
}

// UploadDocument регистрирует уже сохраненный файл. Документы не редактируются.
func (r *DealRoom) UploadDocument(actor Actor, file FileMetadata, description string, confidential bool, now time.Time) (*Change, error) {
	if err := r.authorize(actor); err != nil {
		return nil, err
	}
	if err := file.validate(); err != nil {
		return nil, err
	}

	next := r.Clone()
	actor = next.resolveActor(actor)
	at := next.stamp(now)
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	doc := DocumentInfo{
		ID:             uuid.New(),
		Name:           file.Name,
		MimeType:       mimeType,
		URL:            file.URL,
		StorageKey:     file.StorageKey,
		UploadedBy:     actor.UserID,
		UploadedAt:     at,
		Size:           file.Size,
		Description:    strings.TrimSpace(description),
		IsConfidential: confidential,
	}
	next.Documents = append(next.Documents, doc)

	act, err := next.appendActivity(ActivityDocument, actor, ActivityDetails{
		DocumentID:   &doc.ID,
		DocumentName: doc.Name,
		Action:       DocumentActionUploaded,
	}, at)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("%s (%s) uploaded %s", actor.Name, actor.Role, doc.Name)
	if confidential {
		text += " (confidential)"
	}
	msg := next.appendSystemMessage(text, at)
	next.touch(at)

	return &Change{
		Room:     next,
		Message:  &msg,
		Activity: &act,
		Document: &doc,
		Events: []Event{{
			Name:       EventNewDocument,
			RoomID:     next.ID,
			Actor:      actor,
			Recipients: []string{next.Counterpart(actor.UserID)},
			Title:      "New document",
			Body:       fmt.Sprintf("%s uploaded %s", actor.Name, doc.Name),
			Payload:    doc,
			OccurredAt: at,
		}},
	}, nil
}

// UpdateStatus двигает сделку по автомату статусов. Любая сторона может пройти любое допустимое ребро.
func (r *DealRoom) UpdateStatus(actor Actor, status DealStatus, now time.Time) (*Change, error) {
	if err := r.authorize(actor); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if !CanTransition(r.Status, status) {
		return nil, &apperrors.IllegalTransitionError{From: string(r.Status), To: string(status)}
	}

	next := r.Clone()
	actor = next.resolveActor(actor)
	at := next.stamp(now)
	previous := r.Status
	next.Status = status

	act, err := next.appendActivity(ActivityStatusChange, actor, ActivityDetails{
		PreviousStatus: previous,
		NewStatus:      status,
	}, at)
	if err != nil {
		return nil, err
	}
	msg := next.appendSystemMessage(fmt.Sprintf("%s (%s) changed the deal status from %s to %s",
		actor.Name, actor.Role, previous.Label(), status.Label()), at)
	next.touch(at)

	return &Change{
		Room:     next,
		Message:  &msg,
		Activity: &act,
		Events: []Event{{
			Name:       EventStatusChanged,
			RoomID:     next.ID,
			Actor:      actor,
			Recipients: []string{next.Counterpart(actor.UserID)},
			Title:      "Deal status changed",
			Body:       fmt.Sprintf("%s moved the deal to %s", actor.Name, status.Label()),
			Payload:    StatusChangedPayload{PreviousStatus: previous, NewStatus: status, ChangedBy: actor},
			OccurredAt: at,
		}},
	}, nil
}

// ToggleArchive: флаг общий для комнаты. Роль не важна, в журнал не пишется.
func (r *DealRoom) ToggleArchive(userID string, archive bool) (*Change, error) {
	if !IsParticipant(r, userID) {
		return nil, apperrors.ErrForbidden
	}
	next := r.Clone()
	next.IsArchived = archive
	return &Change{Room: next}, nil
}

func (r *DealRoom) authorize(actor Actor) error {
	if !CanAct(r, actor.UserID, actor.Role) {
		return apperrors.ErrForbidden
	}
	return nil
}

// resolveActor подставляет имя из комнаты, если клиент его не передал.
func (r *DealRoom) resolveActor(actor Actor) Actor {
	if strings.TrimSpace(actor.Name) != "" {
		return actor
	}
	switch actor.Role {
	case RoleFounder:
		actor.Name = r.FounderName
	case RoleInvestor:
		actor.Name = r.InvestorName
	}
	if actor.Name == "" {
		actor.Name = actor.UserID
	}
	return actor
}

func (r *DealRoom) appendActivity(t ActivityType, actor Actor, details ActivityDetails, at time.Time) (Activity, error) {
	a := Activity{
		ID:           uuid.New(),
		Seq:          r.nextSeq(),
		Type:         t,
		ActorUserID:  actor.UserID,
		ActorName:    actor.Name,
		ActorRole:    actor.Role,
		Timestamp:    at,
		Details:      details,
		PreviousHash: r.lastActivityHash(),
	}
	hash, err := ComputeActivityHash(a)
	if err != nil {
		return Activity{}, err
	}
	a.Hash = hash
	r.Activities = append(r.Activities, a)
	return a, nil
}

func (r *DealRoom) appendSystemMessage(content string, at time.Time) Message {
	msg := newSystemMessage(r.nextSeq(), content, at)
	r.Messages = append(r.Messages, msg)
	return msg
}

func projectLabel(r *DealRoom) string {
	if r.ProjectName != "" {
		return r.ProjectName
	}
	return r.ProjectID
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= notificationPreviewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:notificationPreviewLength]) + "…"
}
