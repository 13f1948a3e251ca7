package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_room/internal/domain"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// DealRoomFilter: параметры выборки комнат участника.
type DealRoomFilter struct {
	Role       domain.Role
	Status     domain.DealStatus
	Archived   *bool
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (f DealRoomFilter) normalized() DealRoomFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f DealRoomFilter) matches(room *domain.DealRoom, userID string) bool {
	switch f.Role {
	case domain.RoleFounder:
		if room.FounderUserID != userID {
			return false
		}
	case domain.RoleInvestor:
		if room.InvestorUserID != userID {
			return false
		}
	default:
		if !domain.IsParticipant(room, userID) {
			return false
		}
	}
	if f.Status != "" && room.Status != f.Status {
		return false
	}
	if f.Archived != nil && room.IsArchived != *f.Archived {
		return false
	}
	if f.ActiveOnly && !room.IsOpen() {
		return false
	}
	return true
}

// DealRoomRepository хранит снапшоты комнат. Save проходит только если версия
// в хранилище совпадает с версией загруженного снапшота.
type DealRoomRepository interface {
	Create(ctx context.Context, room *domain.DealRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DealRoom, error)
	Save(ctx context.Context, room *domain.DealRoom) error
	ListByParticipant(ctx context.Context, userID string, filter DealRoomFilter) ([]*domain.DealRoom, error)
}

type dealRoomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewDealRoomRepository(db *pgxpool.Pool, log logger.Logger) DealRoomRepository {
	return &dealRoomRepository{db: db, log: log}
}

func (r *dealRoomRepository) Create(ctx context.Context, room *domain.DealRoom) error {
	room.Version = 1
	snapshot, err := json.Marshal(room)
	if err != nil {
		r.log.Error("Failed to marshal deal room", "error", err)
		return fmt.Errorf("marshal deal room: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO deal_rooms (id, project_id, founder_user_id, investor_user_id, status,
		                        is_archived, last_activity_at, version, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.Exec(ctx, query,
		room.ID, room.ProjectID, room.FounderUserID, room.InvestorUserID, room.Status,
		room.IsArchived, room.LastActivityAt, room.Version, snapshot, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create deal room", "error", err, "room_id", room.ID)
		return err
	}

	if err := appendAuditLog(ctx, tx, room); err != nil {
		r.log.Error("Failed to write audit log", "error", err, "room_id", room.ID)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit deal room", "error", err, "room_id", room.ID)
		return err
	}
	return nil
}

func (r *dealRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DealRoom, error) {
	query := `SELECT version, snapshot FROM deal_rooms WHERE id = $1`

	var (
		version  int64
		snapshot []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&version, &snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDealRoomNotFound
		}
		r.log.Error("Failed to get deal room by ID", "error", err, "room_id", id)
		return nil, err
	}

	return decodeSnapshot(snapshot, version)
}

func (r *dealRoomRepository) Save(ctx context.Context, room *domain.DealRoom) error {
	expected := room.Version
	next := *room
	next.Version = expected + 1
	snapshot, err := json.Marshal(&next)
	if err != nil {
		r.log.Error("Failed to marshal deal room", "error", err)
		return fmt.Errorf("marshal deal room: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE deal_rooms
		SET status = $3, is_archived = $4, last_activity_at = $5, snapshot = $6,
		    version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $2
	`

	tag, err := tx.Exec(ctx, query,
		room.ID, expected, room.Status, room.IsArchived, room.LastActivityAt, snapshot, room.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to save deal room", "error", err, "room_id", room.ID)
		return err
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM deal_rooms WHERE id = $1)`, room.ID).Scan(&exists); err != nil {
			r.log.Error("Failed to check deal room existence", "error", err)
			return err
		}
		if !exists {
			return apperrors.ErrDealRoomNotFound
		}
		return apperrors.ErrConflict
	}

	// строка уже заблокирована UPDATE, конкурент с той же версией сюда не дойдет
	if err := appendAuditLog(ctx, tx, &next); err != nil {
		r.log.Error("Failed to write audit log", "error", err, "room_id", room.ID)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit deal room", "error", err, "room_id", room.ID)
		return err
	}

	room.Version = next.Version
	return nil
}

func (r *dealRoomRepository) ListByParticipant(ctx context.Context, userID string, filter DealRoomFilter) ([]*domain.DealRoom, error) {
	filter = filter.normalized()

	var (
		conds []string
		args  = []any{userID}
	)
	switch filter.Role {
	case domain.RoleFounder:
		conds = append(conds, "founder_user_id = $1")
	case domain.RoleInvestor:
		conds = append(conds, "investor_user_id = $1")
	default:
		conds = append(conds, "(founder_user_id = $1 OR investor_user_id = $1)")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		conds = append(conds, fmt.Sprintf("is_archived = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_archived = FALSE", "status NOT IN ('closed', 'rejected')")
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT version, snapshot
		FROM deal_rooms
		WHERE %s
		ORDER BY last_activity_at DESC, id
		LIMIT $%d OFFSET $%d
	`, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list deal rooms", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var rooms []*domain.DealRoom
	for rows.Next() {
		var (
			version  int64
			snapshot []byte
		)
		if err := rows.Scan(&version, &snapshot); err != nil {
			r.log.Error("Failed to scan deal room", "error", err)
			return nil, err
		}
		room, err := decodeSnapshot(snapshot, version)
		if err != nil {
			r.log.Error("Failed to decode deal room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func decodeSnapshot(snapshot []byte, version int64) (*domain.DealRoom, error) {
	room := &domain.DealRoom{}
	if err := json.Unmarshal(snapshot, room); err != nil {
		return nil, fmt.Errorf("decode deal room snapshot: %w", err)
	}
	room.Version = version
	return room, nil
}
