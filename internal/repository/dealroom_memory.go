package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"deal_room/internal/domain"
	apperrors "deal_room/pkg/errors"
)

type storedRoom struct {
	version  int64
	snapshot []byte
}

// memoryDealRoomRepository хранит JSON-снапшоты, поэтому читатели никогда
// не делят память с сохраненной комнатой.
type memoryDealRoomRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]storedRoom
}

func NewMemoryDealRoomRepository() DealRoomRepository {
	return &memoryDealRoomRepository{rooms: make(map[uuid.UUID]storedRoom)}
}

func (r *memoryDealRoomRepository) Create(_ context.Context, room *domain.DealRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return apperrors.ErrConflict
	}
	room.Version = 1
	snapshot, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal deal room: %w", err)
	}
	r.rooms[room.ID] = storedRoom{version: room.Version, snapshot: snapshot}
	return nil
}

func (r *memoryDealRoomRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.DealRoom, error) {
	r.mu.RLock()
	stored, ok := r.rooms[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrDealRoomNotFound
	}
	return decodeSnapshot(stored.snapshot, stored.version)
}

func (r *memoryDealRoomRepository) Save(_ context.Context, room *domain.DealRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[room.ID]
	if !ok {
		return apperrors.ErrDealRoomNotFound
	}
	if stored.version != room.Version {
		return apperrors.ErrConflict
	}

	next := *room
	next.Version = room.Version + 1
	snapshot, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal deal room: %w", err)
	}
	r.rooms[room.ID] = storedRoom{version: next.Version, snapshot: snapshot}
	room.Version = next.Version
	return nil
}

func (r *memoryDealRoomRepository) ListByParticipant(_ context.Context, userID string, filter DealRoomFilter) ([]*domain.DealRoom, error) {
	filter = filter.normalized()

	r.mu.RLock()
	var rooms []*domain.DealRoom
	for _, stored := range r.rooms {
		room, err := decodeSnapshot(stored.snapshot, stored.version)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if filter.matches(room, userID) {
			rooms = append(rooms, room)
		}
	}
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActivityAt.Equal(rooms[j].LastActivityAt) {
			return rooms[i].ID.String() < rooms[j].ID.String()
		}
		return rooms[i].LastActivityAt.After(rooms[j].LastActivityAt)
	})

	if filter.Offset >= len(rooms) {
		return []*domain.DealRoom{}, nil
	}
	rooms = rooms[filter.Offset:]
	if len(rooms) > filter.Limit {
		rooms = rooms[:filter.Limit]
	}
	return rooms, nil
}
