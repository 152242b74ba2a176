package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type pickKey struct {
	roomID    string
	pickIndex int
}

// MemoryRepository keeps records in process. Used in tests and when no
// durable driver is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]RoomRecord
	picks map[pickKey]PickRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms: make(map[string]RoomRecord),
		picks: make(map[pickKey]PickRecord),
	}
}

func (m *MemoryRepository) SaveRoom(_ context.Context, room RoomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.PickOrder = append([]string(nil), room.PickOrder...)
	m.rooms[room.RoomID] = room
	return nil
}

func (m *MemoryRepository) SavePick(_ context.Context, pick PickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picks[pickKey{pick.RoomID, pick.PickIndex}] = pick
	return nil
}

func (m *MemoryRepository) GetRoom(_ context.Context, roomID string) (RoomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return RoomRecord{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	room.PickOrder = append([]string(nil), room.PickOrder...)
	return room, nil
}

func (m *MemoryRepository) ListRooms(_ context.Context) ([]RoomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomRecord, 0, len(m.rooms))
	for _, r := range m.rooms {
		r.PickOrder = append([]string(nil), r.PickOrder...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) ListPicks(_ context.Context, roomID string) ([]PickRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PickRecord, 0)
	for k, p := range m.picks {
		if k.roomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PickIndex < out[j].PickIndex })
	return out, nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }

func (m *MemoryRepository) Close() error { return nil }
