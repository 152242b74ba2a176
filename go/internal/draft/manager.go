package draft

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Manager is the registry of live rooms keyed by room id.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	clock clockwork.Clock
}

// NewManager returns an empty registry whose rooms share clock.
func NewManager(clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{rooms: make(map[string]*Room), clock: clock}
}

// GetOrCreate returns the room for cfg.RoomID, creating it from cfg when new.
// An existing room keeps its original config. created is true for new rooms.
func (m *Manager) GetOrCreate(cfg Config) (room *Room, created bool) {
	m.mu.RLock()
	room, ok := m.rooms[cfg.RoomID]
	m.mu.RUnlock()
	if ok {
		return room, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[cfg.RoomID]; ok {
		return room, false
	}
	room = NewRoom(cfg, m.clock)
	m.rooms[cfg.RoomID] = room
	return room, true
}

// Get returns the room or nil.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// Rooms returns every room ordered by id.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
