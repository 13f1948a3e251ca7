package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deal_room/internal/domain"
	"deal_room/internal/repository"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

var (
	t0       = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	founder  = domain.Actor{UserID: "f1", Name: "Fiona", Role: domain.RoleFounder}
	investor = domain.Actor{UserID: "i1", Name: "Ivan", Role: domain.RoleInvestor}
)

type testDeps struct {
	repo     repository.DealRoomRepository
	notifier *MockNotifier
	files    *MockFileStorage
	analyzer *MockAnalyzer
	clock    *FakeClock
}

func newTestService(t *testing.T) (DealRoomService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		repo:     repository.NewMemoryDealRoomRepository(),
		notifier: &MockNotifier{},
		files:    &MockFileStorage{},
		analyzer: &MockAnalyzer{},
		clock:    NewFakeClock(t0),
	}
	deps.notifier.On("Dispatch", mock.Anything, mock.Anything).Return()
	log := logger.Nop()
	svc := NewDealRoomService(deps.repo, deps.notifier, deps.files, NewTermAnalysisService(deps.analyzer, log), deps.clock, log)
	return svc, deps
}

func createRoom(t *testing.T, svc DealRoomService) *domain.DealRoom {
	t.Helper()
	room, err := svc.CreateDealRoom(context.Background(), domain.CreateParams{
		ProjectID:      "p1",
		ProjectName:    "Solar Roofs",
		FounderUserID:  founder.UserID,
		FounderName:    founder.Name,
		InvestorUserID: investor.UserID,
		InvestorName:   investor.Name,
	}, investor)
	require.NoError(t, err)
	return room
}

func dispatchedEvents(n *MockNotifier) []domain.EventName {
	var names []domain.EventName
	for _, call := range n.Calls {
		if call.Method != "Dispatch" {
			continue
		}
		for _, e := range call.Arguments.Get(1).([]domain.Event) {
			names = append(names, e.Name)
		}
	}
	return names
}

func TestCreateDealRoom(t *testing.T) {
	svc, deps := newTestService(t)

	room := createRoom(t, svc)

	stored, err := deps.repo.GetByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealStatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, []domain.EventName{domain.EventDealRoomCreated}, dispatchedEvents(deps.notifier))
}

func TestCreateDealRoom_InvalidParticipants(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.CreateDealRoom(context.Background(), domain.CreateParams{
		ProjectID: "p1", FounderUserID: "u1", InvestorUserID: "u1",
	}, domain.Actor{UserID: "u1", Role: domain.RoleFounder})

	assert.ErrorIs(t, err, apperrors.ErrInvalidParticipants)
	deps.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSendMessage_PersistsAndNotifies(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)

	deps.clock.Advance(time.Minute)
	msg, err := svc.SendMessage(ctx, room.ID, founder, "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFounder, msg.SenderRole)
	assert.Equal(t, t0.Add(time.Minute), msg.Timestamp)

	messages, err := svc.GetMessages(ctx, room.ID, investor.UserID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	newer, err := svc.GetMessages(ctx, room.ID, investor.UserID, messages[0].Seq)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, msg.ID, newer[0].ID)

	assert.Contains(t, dispatchedEvents(deps.notifier), domain.EventNewMessage)
}

func TestMutation_FailureLeavesRoomUntouched(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)
	before, err := deps.repo.GetByID(ctx, room.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, room.ID, domain.Actor{UserID: "x9", Role: domain.RoleInvestor}, "hi", nil)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.UpdateDealStatus(ctx, room.ID, founder, domain.DealStatusClosed)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	_, err = svc.SendMessage(ctx, uuid.New(), founder, "hi", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	after, err := deps.repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []domain.EventName{domain.EventDealRoomCreated}, dispatchedEvents(deps.notifier))
}

func TestReads_RequireParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)

	_, err := svc.GetDealRoom(ctx, room.ID, "x9")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.GetActivities(ctx, room.ID, "x9", 0)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.GetTermsHistory(ctx, room.ID, "x9")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	first, err := svc.GetDealRoom(ctx, room.ID, founder.UserID)
	require.NoError(t, err)
	second, err := svc.GetDealRoom(ctx, room.ID, founder.UserID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUpdateDealTerms_AndHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)

	amount := decimal.NewFromInt(5000000)
	pct := decimal.NewFromInt(10)
	terms := domain.DealTerms{InvestmentAmount: &amount, Variant: &domain.EquityTerms{Percentage: &pct}}

	updated, err := svc.UpdateDealTerms(ctx, room.ID, investor, terms)
	require.NoError(t, err)
	assert.Equal(t, domain.DealTypeEquity, updated.Terms.DealType())

	history, err := svc.GetTermsHistory(ctx, room.ID, founder.UserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Previous.IsEmpty())
	assert.Equal(t, domain.DealTypeEquity, history[0].New.DealType())
	assert.Equal(t, investor.UserID, history[0].Actor.UserID)

	report, err := svc.VerifyAuditTrail(ctx, room.ID, founder.UserID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Activities)
}

func TestUpdateDealStatus_Path(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)

	path := []domain.DealStatus{
		domain.DealStatusNegotiation,
		domain.DealStatusDueDiligence,
		domain.DealStatusSigned,
		domain.DealStatusClosed,
	}
	for i, status := range path {
		actor := founder
		if i%2 == 1 {
			actor = investor
		}
		deps.clock.Advance(time.Hour)
		updated, err := svc.UpdateDealStatus(ctx, room.ID, actor, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	activities, err := svc.GetActivities(ctx, room.ID, founder.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, activities, 1+len(path))
}

type conflictingRepo struct {
	repository.DealRoomRepository
}

func (r conflictingRepo) Save(context.Context, *domain.DealRoom) error {
	return apperrors.ErrConflict
}

func TestMutation_ConflictIsReturnedWithoutNotification(t *testing.T) {
	mem := repository.NewMemoryDealRoomRepository()
	notifier := &MockNotifier{}
	notifier.On("Dispatch", mock.Anything, mock.Anything).Return()
	log := logger.Nop()
	files := &MockFileStorage{}
	svc := NewDealRoomService(conflictingRepo{mem}, notifier, files, NewTermAnalysisService(NewRuleAnalyzer(), log), NewFakeClock(t0), log)

	room := createRoom(t, svc)
	notifier.Calls = nil

	_, err := svc.SendMessage(context.Background(), room.ID, founder, "hi", nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)

	files.On("Upload", mock.Anything, mock.Anything).Return(domain.FileMetadata{StorageKey: "k1", Name: "a.pdf"}, nil)
	files.On("Delete", mock.Anything, "k1").Return(nil)

	_, err = svc.UploadDocument(context.Background(), room.ID, founder, DocumentUpload{
		File: FileUpload{Name: "a.pdf", Size: 3, Body: bytes.NewReader([]byte("abc"))},
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	files.AssertCalled(t, "Delete", mock.Anything, "k1")
}

func TestUploadDocument(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)

	deps.files.On("Upload", mock.Anything, mock.MatchedBy(func(u FileUpload) bool {
		return u.RoomID == room.ID && u.Name == "deck.pdf"
	})).Return(domain.FileMetadata{
		StorageKey: "deal-rooms/x/deck.pdf",
		URL:        "s3://bucket/deal-rooms/x/deck.pdf",
		Name:       "deck.pdf",
		MimeType:   "application/pdf",
		Size:       4,
	}, nil)
	deps.files.On("PresignGet", mock.Anything, "deal-rooms/x/deck.pdf", "deck.pdf").Return("https://signed.example/deck.pdf", nil)

	doc, err := svc.UploadDocument(ctx, room.ID, founder, DocumentUpload{
		File:         FileUpload{Name: "deck.pdf", Size: 4, Body: bytes.NewReader([]byte("%PDF"))},
		Description:  "Pitch deck",
		Confidential: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "deck.pdf", doc.Name)
	assert.True(t, doc.IsConfidential)

	docs, err := svc.ListDocuments(ctx, room.ID, investor.UserID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	download, err := svc.GetDocument(ctx, room.ID, doc.ID, investor.UserID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/deck.pdf", download.DownloadURL)
	assert.True(t, download.Confidential)

	_, err = svc.GetDocument(ctx, room.ID, uuid.New(), investor.UserID)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	assert.Contains(t, dispatchedEvents(deps.notifier), domain.EventNewDocument)
}

func TestUploadDocument_ForbiddenBeforeStoringBytes(t *testing.T) {
	svc, deps := newTestService(t)
	room := createRoom(t, svc)

	_, err := svc.UploadDocument(context.Background(), room.ID, domain.Actor{UserID: "x9", Role: domain.RoleFounder}, DocumentUpload{
		File: FileUpload{Name: "a.pdf", Size: 1, Body: bytes.NewReader([]byte("a"))},
	})

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	deps.files.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestToggleArchive_AndListing(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc)
	deps.notifier.Calls = nil

	_, err := svc.ToggleArchive(ctx, room.ID, "x9", true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	archived, err := svc.ToggleArchive(ctx, room.ID, founder.UserID, true)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	assert.Empty(t, dispatchedEvents(deps.notifier))

	active, err := svc.ListDealRooms(ctx, investor.UserID, repository.DealRoomFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListDealRooms(ctx, investor.UserID, repository.DealRoomFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.ListDealRooms(ctx, "", repository.DealRoomFilter{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAnalyzeTerms_FallsBackOnFailure(t *testing.T) {
	svc, deps := newTestService(t)
	room := createRoom(t, svc)
	deps.analyzer.On("Analyze", mock.Anything, mock.Anything).Return("", errors.New("model offline"))

	text, err := svc.AnalyzeTerms(context.Background(), room.ID, founder.UserID, ProjectContext{Stage: "seed"})

	require.NoError(t, err)
	assert.Equal(t, AnalysisUnavailable, text)
}
