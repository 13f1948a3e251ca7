package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"deal_room/internal/domain"
	"deal_room/internal/middleware"
	"deal_room/internal/repository"
	"deal_room/internal/service"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

// multipartOverhead: запас на заголовки и поля формы сверх самого файла.
const multipartOverhead = 1 << 20

type DealRoomHandler struct {
	dealRoomService service.DealRoomService
	maxUploadBytes  int64
	log             logger.Logger
}

func NewDealRoomHandler(dealRoomService service.DealRoomService, maxUploadBytes int64, log logger.Logger) *DealRoomHandler {
	return &DealRoomHandler{
		dealRoomService: dealRoomService,
		maxUploadBytes:  maxUploadBytes,
		log:             log,
	}
}

type CreateDealRoomRequest struct {
	ProjectID      string            `json:"project_id" binding:"required"`
	ProjectName    string            `json:"project_name"`
	FounderUserID  string            `json:"founder_user_id"`
	FounderName    string            `json:"founder_name"`
	InvestorUserID string            `json:"investor_user_id"`
	InvestorName   string            `json:"investor_name"`
	InitialTerms   *domain.DealTerms `json:"initial_terms,omitempty"`
}

func (h *DealRoomHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateDealRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := domain.CreateParams{
		ProjectID:      req.ProjectID,
		ProjectName:    req.ProjectName,
		FounderUserID:  req.FounderUserID,
		FounderName:    req.FounderName,
		InvestorUserID: req.InvestorUserID,
		InvestorName:   req.InvestorName,
	}
	// Имя инициатора берем из токена, если клиент его не прислал
	switch actor.UserID {
	case params.FounderUserID:
		if params.FounderName == "" {
			params.FounderName = actor.Name
		}
	case params.InvestorUserID:
		if params.InvestorName == "" {
			params.InvestorName = actor.Name
		}
	}
	if req.InitialTerms != nil {
		params.InitialTerms = *req.InitialTerms
	}

	room, err := h.dealRoomService.CreateDealRoom(c.Request.Context(), params, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *DealRoomHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rooms, err := h.dealRoomService.ListDealRooms(c.Request.Context(), actor.UserID, filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *DealRoomHandler) GetByID(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	room, err := h.dealRoomService.GetDealRoom(c.Request.Context(), roomID, actor.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, DealRoomView{DealRoom: room, NextStatuses: domain.NextStatuses(room.Status)})
}

// DealRoomView: комната и статусы, в которые ее можно перевести.
type DealRoomView struct {
	*domain.DealRoom
	NextStatuses []domain.DealStatus `json:"next_statuses"`
}

type SendMessageRequest struct {
	Content     string      `json:"content"`
	Attachments []uuid.UUID `json:"attachments,omitempty"`
}

func (h *DealRoomHandler) SendMessage(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.dealRoomService.SendMessage(c.Request.Context(), roomID, actor, req.Content, req.Attachments)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *DealRoomHandler) GetMessages(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	afterSeq, err := queryInt64(c, "after_seq")
	if err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.dealRoomService.GetMessages(c.Request.Context(), roomID, actor.UserID, afterSeq)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// UpdateTerms принимает плоский объект условий с полем deal_type.
func (h *DealRoomHandler) UpdateTerms(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	var terms domain.DealTerms
	if err := c.ShouldBindJSON(&terms); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.dealRoomService.UpdateDealTerms(c.Request.Context(), roomID, actor, terms)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *DealRoomHandler) GetTermsHistory(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	history, err := h.dealRoomService.GetTermsHistory(c.Request.Context(), roomID, actor.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *DealRoomHandler) Analyze(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	project := service.ProjectContext{
		Stage:    c.Query("stage"),
		Industry: c.Query("industry"),
	}
	if raw := c.Query("funding_goal"); raw != "" {
		goal, err := decimal.NewFromString(raw)
		if err != nil {
			_ = c.Error(apperrors.NewValidationError("funding_goal", "must be a number"))
			return
		}
		if err := domain.ValidateAmount("funding_goal", goal); err != nil {
			_ = c.Error(err)
			return
		}
		project.FundingGoal = &goal
	}

	analysis, err := h.dealRoomService.AnalyzeTerms(c.Request.Context(), roomID, actor.UserID, project)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

type UpdateStatusRequest struct {
	Status domain.DealStatus `json:"status" binding:"required"`
}

func (h *DealRoomHandler) UpdateStatus(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.dealRoomService.UpdateDealStatus(c.Request.Context(), roomID, actor, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type ToggleArchiveRequest struct {
	Archive *bool `json:"archive" binding:"required"`
}

func (h *DealRoomHandler) ToggleArchive(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	var req ToggleArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.dealRoomService.ToggleArchive(c.Request.Context(), roomID, actor.UserID, *req.Archive)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// UploadDocument принимает multipart форму: file, description, confidential.
func (h *DealRoomHandler) UploadDocument(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(apperrors.NewValidationError("file", "file is too large"))
			return
		}
		_ = c.Error(apperrors.NewValidationError("file", "file is required"))
		return
	}
	if header.Size > h.maxUploadBytes {
		_ = c.Error(apperrors.NewValidationError("file", "file is too large"))
		return
	}

	confidential := false
	if raw := c.PostForm("confidential"); raw != "" {
		if confidential, err = strconv.ParseBool(raw); err != nil {
			_ = c.Error(apperrors.NewValidationError("confidential", "must be a boolean"))
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", "error", err)
		_ = c.Error(err)
		return
	}
	defer file.Close()

	doc, err := h.dealRoomService.UploadDocument(c.Request.Context(), roomID, actor, service.DocumentUpload{
		File: service.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		},
		Description:  c.PostForm("description"),
		Confidential: confidential,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *DealRoomHandler) ListDocuments(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	docs, err := h.dealRoomService.ListDocuments(c.Request.Context(), roomID, actor.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

func (h *DealRoomHandler) GetDocument(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid document ID", apperrors.ErrBadRequest))
		return
	}

	download, err := h.dealRoomService.GetDocument(c.Request.Context(), roomID, documentID, actor.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, download)
}

func (h *DealRoomHandler) GetActivities(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	afterSeq, err := queryInt64(c, "after_seq")
	if err != nil {
		_ = c.Error(err)
		return
	}

	activities, err := h.dealRoomService.GetActivities(c.Request.Context(), roomID, actor.UserID, afterSeq)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

func (h *DealRoomHandler) VerifyAudit(c *gin.Context) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}

	report, err := h.dealRoomService.VerifyAuditTrail(c.Request.Context(), roomID, actor.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return actor, ok
}

func actorAndRoom(c *gin.Context) (domain.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return domain.Actor{}, uuid.Nil, false
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid deal room ID", apperrors.ErrBadRequest))
		return domain.Actor{}, uuid.Nil, false
	}
	return actor, roomID, true
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(name, "must be a boolean")
	}
	return &v, nil
}

func parseListFilter(c *gin.Context) (repository.DealRoomFilter, error) {
	filter := repository.DealRoomFilter{
		Role:   domain.Role(c.Query("role")),
		Status: domain.DealStatus(c.Query("status")),
	}
	if filter.Role != "" && !filter.Role.IsParticipantRole() {
		return filter, apperrors.NewValidationError("role", "must be founder or investor")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, apperrors.NewValidationError("status", "unknown deal status")
	}

	archived, err := queryBool(c, "archived")
	if err != nil {
		return filter, err
	}
	filter.Archived = archived

	active, err := queryBool(c, "active")
	if err != nil {
		return filter, err
	}
	filter.ActiveOnly = active != nil && *active

	limit, err := queryInt64(c, "limit")
	if err != nil {
		return filter, err
	}
	offset, err := queryInt64(c, "offset")
	if err != nil {
		return filter, err
	}
	filter.Limit = int(limit)
	filter.Offset = int(offset)
	return filter, nil
}
