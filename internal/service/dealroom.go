package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"deal_room/internal/domain"
	"deal_room/internal/repository"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

// DocumentUpload: файл и его описание для UploadDocument.
type DocumentUpload struct {
	File         FileUpload
	Description  string
	Confidential bool
}

// DocumentDownload: документ и короткоживущая ссылка на скачивание.
type DocumentDownload struct {
	Document     domain.DocumentInfo `json:"document"`
	DownloadURL  string              `json:"download_url"`
	Confidential bool                `json:"confidential"`
}

// AuditReport: результат проверки цепочки журнала.
type AuditReport struct {
	RoomID      uuid.UUID `json:"room_id"`
	Activities  int       `json:"activities"`
	Valid       bool      `json:"valid"`
	BrokenIndex *int      `json:"broken_index,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

type DealRoomService interface {
	CreateDealRoom(ctx context.Context, params domain.CreateParams, initiator domain.Actor) (*domain.DealRoom, error)
	GetDealRoom(ctx context.Context, roomID uuid.UUID, viewerID string) (*domain.DealRoom, error)
	ListDealRooms(ctx context.Context, userID string, filter repository.DealRoomFilter) ([]*domain.DealRoom, error)

	SendMessage(ctx context.Context, roomID uuid.UUID, actor domain.Actor, content string, attachments []uuid.UUID) (*domain.Message, error)
	GetMessages(ctx context.Context, roomID uuid.UUID, viewerID string, afterSeq int64) ([]domain.Message, error)

	UpdateDealTerms(ctx context.Context, roomID uuid.UUID, actor domain.Actor, terms domain.DealTerms) (*domain.DealRoom, error)
	GetTermsHistory(ctx context.Context, roomID uuid.UUID, viewerID string) ([]domain.TermsRevision, error)
	AnalyzeTerms(ctx context.Context, roomID uuid.UUID, viewerID string, project ProjectContext) (string, error)

	UploadDocument(ctx context.Context, roomID uuid.UUID, actor domain.Actor, upload DocumentUpload) (*domain.DocumentInfo, error)
	ListDocuments(ctx context.Context, roomID uuid.UUID, viewerID string) ([]domain.DocumentInfo, error)
	GetDocument(ctx context.Context, roomID, documentID uuid.UUID, viewerID string) (*DocumentDownload, error)

	UpdateDealStatus(ctx context.Context, roomID uuid.UUID, actor domain.Actor, status domain.DealStatus) (*domain.DealRoom, error)
	ToggleArchive(ctx context.Context, roomID uuid.UUID, userID string, archive bool) (*domain.DealRoom, error)

	GetActivities(ctx context.Context, roomID uuid.UUID, viewerID string, afterSeq int64) ([]domain.Activity, error)
	VerifyAuditTrail(ctx context.Context, roomID uuid.UUID, viewerID string) (*AuditReport, error)
}

type dealRoomService struct {
	repo     repository.DealRoomRepository
	notifier NotificationService
	files    FileStorage
	analysis TermAnalysisService
	clock    Clock
	log      logger.Logger
}

func NewDealRoomService(
	repo repository.DealRoomRepository,
	notifier NotificationService,
	files FileStorage,
	analysis TermAnalysisService,
	clock Clock,
	log logger.Logger,
) DealRoomService {
	return &dealRoomService{
		repo:     repo,
		notifier: notifier,
		files:    files,
		analysis: analysis,
		clock:    clock,
		log:      log,
	}
}

func (s *dealRoomService) CreateDealRoom(ctx context.Context, params domain.CreateParams, initiator domain.Actor) (*domain.DealRoom, error) {
	change, err := domain.NewDealRoom(params, initiator, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, change.Room); err != nil {
		return nil, err
	}

	s.log.Info("Deal room created", "room_id", change.Room.ID, "project_id", params.ProjectID, "by", initiator.UserID)
	s.notifier.Dispatch(ctx, change.Events)
	return change.Room, nil
}

func (s *dealRoomService) GetDealRoom(ctx context.Context, roomID uuid.UUID, viewerID string) (*domain.DealRoom, error) {
	return s.loadForViewer(ctx, roomID, viewerID)
}

func (s *dealRoomService) ListDealRooms(ctx context.Context, userID string, filter repository.DealRoomFilter) ([]*domain.DealRoom, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return s.repo.ListByParticipant(ctx, userID, filter)
}

func (s *dealRoomService) SendMessage(ctx context.Context, roomID uuid.UUID, actor domain.Actor, content string, attachments []uuid.UUID) (*domain.Message, error) {
	change, err := s.mutate(ctx, roomID, func(room *domain.DealRoom, now time.Time) (*domain.Change, error) {
		return room.SendMessage(actor, content, attachments, now)
	})
	if err != nil {
		return nil, err
	}
	return change.Message, nil
}

func (s *dealRoomService) GetMessages(ctx context.Context, roomID uuid.UUID, viewerID string, afterSeq int64) ([]domain.Message, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	return room.MessagesAfter(afterSeq), nil
}

func (s *dealRoomService) UpdateDealTerms(ctx context.Context, roomID uuid.UUID, actor domain.Actor, terms domain.DealTerms) (*domain.DealRoom, error) {
	change, err := s.mutate(ctx, roomID, func(room *domain.DealRoom, now time.Time) (*domain.Change, error) {
		return room.UpdateTerms(actor, terms, now)
	})
	if err != nil {
		return nil, err
	}
	return change.Room, nil
}

func (s *dealRoomService) GetTermsHistory(ctx context.Context, roomID uuid.UUID, viewerID string) ([]domain.TermsRevision, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	return room.TermsHistory(), nil
}

func (s *dealRoomService) AnalyzeTerms(ctx context.Context, roomID uuid.UUID, viewerID string, project ProjectContext) (string, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return "", err
	}
	return s.analysis.AnalyzeDealTerms(ctx, room.Terms, project), nil
}

// UploadDocument сначала проверяет права, затем кладет байты в хранилище
// и только потом регистрирует документ в комнате.
func (s *dealRoomService) UploadDocument(ctx context.Context, roomID uuid.UUID, actor domain.Actor, upload DocumentUpload) (*domain.DocumentInfo, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAct(room, actor.UserID, actor.Role) {
		return nil, apperrors.ErrForbidden
	}

	upload.File.RoomID = roomID
	file, err := s.files.Upload(ctx, upload.File)
	if err != nil {
		return nil, err
	}

	change, err := s.mutate(ctx, roomID, func(room *domain.DealRoom, now time.Time) (*domain.Change, error) {
		return room.UploadDocument(actor, file, upload.Description, upload.Confidential, now)
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), file.StorageKey); delErr != nil {
			s.log.Warn("Orphaned document left in storage", "error", delErr, "key", file.StorageKey)
		}
		return nil, err
	}
	return change.Document, nil
}

func (s *dealRoomService) ListDocuments(ctx context.Context, roomID uuid.UUID, viewerID string) ([]domain.DocumentInfo, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	return room.Documents, nil
}

func (s *dealRoomService) GetDocument(ctx context.Context, roomID, documentID uuid.UUID, viewerID string) (*DocumentDownload, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	doc, ok := room.FindDocument(documentID)
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}

	download := &DocumentDownload{Document: doc, DownloadURL: doc.URL, Confidential: doc.IsConfidential}
	if doc.StorageKey != "" {
		url, err := s.files.PresignGet(ctx, doc.StorageKey, doc.Name)
		if err != nil {
			return nil, err
		}
		download.DownloadURL = url
	}
	return download, nil
}

func (s *dealRoomService) UpdateDealStatus(ctx context.Context, roomID uuid.UUID, actor domain.Actor, status domain.DealStatus) (*domain.DealRoom, error) {
	change, err := s.mutate(ctx, roomID, func(room *domain.DealRoom, now time.Time) (*domain.Change, error) {
		return room.UpdateStatus(actor, status, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Deal status changed", "room_id", roomID, "status", status, "by", actor.UserID)
	return change.Room, nil
}

func (s *dealRoomService) ToggleArchive(ctx context.Context, roomID uuid.UUID, userID string, archive bool) (*domain.DealRoom, error) {
	change, err := s.mutate(ctx, roomID, func(room *domain.DealRoom, _ time.Time) (*domain.Change, error) {
		return room.ToggleArchive(userID, archive)
	})
	if err != nil {
		return nil, err
	}
	return change.Room, nil
}

func (s *dealRoomService) GetActivities(ctx context.Context, roomID uuid.UUID, viewerID string, afterSeq int64) ([]domain.Activity, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	return room.ActivitiesAfter(afterSeq), nil
}

func (s *dealRoomService) VerifyAuditTrail(ctx context.Context, roomID uuid.UUID, viewerID string) (*AuditReport, error) {
	room, err := s.loadForViewer(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{RoomID: room.ID, Activities: len(room.Activities), Valid: true}
	if err := domain.VerifyAuditTrail(room); err != nil {
		var chainErr *domain.AuditChainError
		if !errors.As(err, &chainErr) {
			return nil, err
		}
		s.log.Error("Audit chain verification failed", "room_id", roomID, "index", chainErr.Index, "reason", chainErr.Reason)
		report.Valid = false
		report.BrokenIndex = &chainErr.Index
		report.Reason = chainErr.Reason
	}
	return report, nil
}

// mutate: загрузка, чистая операция агрегата, сохранение с проверкой версии, рассылка.
// При любой ошибке сохраненный снапшот не меняется.
func (s *dealRoomService) mutate(
	ctx context.Context,
	roomID uuid.UUID,
	op func(room *domain.DealRoom, now time.Time) (*domain.Change, error),
) (*domain.Change, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	change, err := op(room, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, change.Room); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.log.Warn("Deal room changed concurrently", "room_id", roomID)
		}
		return nil, err
	}

	s.notifier.Dispatch(ctx, change.Events)
	return change, nil
}

func (s *dealRoomService) loadForViewer(ctx context.Context, roomID uuid.UUID, viewerID string) (*domain.DealRoom, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !domain.IsParticipant(room, viewerID) {
		return nil, apperrors.ErrForbidden
	}
	return room, nil
}
