// Package lobby gathers participants before a draft: who is in, who is
// ready, the bots filling empty seats, and the countdown into the draft room.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/models"
)

var (
	ErrLobbyNotFound       = errors.New("Lobby not found")
	ErrParticipantNotFound = errors.New("Participant not found")
	ErrNoParticipants      = errors.New("Lobby has no participants")
	ErrAlreadyStarting     = errors.New("Draft is already starting")
	ErrInvalidBotCount     = errors.New("Bot count must be positive")
)

const (
	// MaxBots caps how many bots one AddBots call adds.
	MaxBots = 9
	// DefaultCountdown is the pause between lobby:start and the draft.
	DefaultCountdown = 10 * time.Second
	// DefaultTimerSec is the per-pick clock of drafts started from a lobby.
	DefaultTimerSec = 60
)

// Participant is one seat in a lobby.
type Participant struct {
	UserID   string    `json:"userId"`
	Login    string    `json:"login"`
	TeamName string    `json:"teamName"`
	Ready    bool      `json:"ready"`
	IsBot    bool      `json:"isBot,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Snapshot is a copy of a lobby, shaped for lobby:participants.
type Snapshot struct {
	RoomID       string        `json:"roomId"`
	AdminID      string        `json:"adminId"`
	Participants []Participant `json:"participants"`
	AllReady     bool          `json:"allReady"`
}

type lobby struct {
	roomID       string
	adminID      string
	createdAt    time.Time
	participants []*Participant
	starting     bool
}

func (l *lobby) find(userID string) (int, *Participant) {
	for i, p := range l.participants {
		if p.UserID == userID {
			return i, p
		}
	}
	return -1, nil
}

func (l *lobby) snapshot() Snapshot {
	s := Snapshot{RoomID: l.roomID, AdminID: l.adminID, Participants: make([]Participant, len(l.participants))}
	for i, p := range l.participants {
		s.Participants[i] = *p
	}
	s.AllReady = l.allReady()
	return s
}

// allReady reports whether a non-empty lobby has every participant ready.
func (l *lobby) allReady() bool {
	if len(l.participants) == 0 {
		return false
	}
	for _, p := range l.participants {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Starter opens the draft room once the countdown ends.
type Starter interface {
	StartDraft(ctx context.Context, cfg draft.Config) (draft.State, error)
}

// TeamCreator makes sure a participant owns a team.
type TeamCreator interface {
	EnsureTeam(ownerID, name, logo string) bool
}

// Manager holds every open lobby keyed by room id.
type Manager struct {
	mu      sync.Mutex
	lobbies map[string]*lobby

	clock       clockwork.Clock
	starter     Starter
	broadcaster draft.Broadcaster
	rng         *rand.Rand
}

func NewManager(clock clockwork.Clock, starter Starter, broadcaster draft.Broadcaster) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if broadcaster == nil {
		broadcaster = draft.NopBroadcaster{}
	}
	return &Manager{
		lobbies:     make(map[string]*lobby),
		clock:       clock,
		starter:     starter,
		broadcaster: broadcaster,
		rng:         rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// CreateOrGet returns the lobby for roomID, creating it with adminID as its
// admin. created is false when the lobby already existed.
func (m *Manager) CreateOrGet(roomID, adminID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lobbies[roomID]; ok {
		return l.snapshot(), false
	}
	l := &lobby{roomID: roomID, adminID: adminID, createdAt: m.clock.Now()}
	m.lobbies[roomID] = l
	log.Info().Str("room_id", roomID).Str("user_id", adminID).Msg("lobby created")
	return l.snapshot(), true
}

// Get returns a copy of the lobby.
func (m *Manager) Get(roomID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return l.snapshot(), true
}

// AddParticipant adds p or refreshes an existing seat. A returning
// participant keeps the ready flag it had.
func (m *Manager) AddParticipant(roomID string, p Participant) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[roomID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}
	m.upsertLocked(l, p)
	return l.snapshot(), nil
}

func (m *Manager) upsertLocked(l *lobby, p Participant) {
	if p.TeamName == "" {
		p.TeamName = p.Login + "'s Team"
	}
	p.IsBot = p.IsBot || models.IsBot(p.UserID)
	if _, existing := l.find(p.UserID); existing != nil {
		p.Ready = existing.Ready
		p.JoinedAt = existing.JoinedAt
		*existing = p
		return
	}
	p.JoinedAt = m.clock.Now()
	l.participants = append(l.participants, &p)
}

// RemoveParticipant drops userID. Removing the last participant deletes the
// lobby, reported by ok being false.
func (m *Manager) RemoveParticipant(roomID, userID string) (snap Snapshot, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, found := m.lobbies[roomID]
	if !found {
		return Snapshot{}, false
	}
	if i, p := l.find(userID); p != nil {
		l.participants = append(l.participants[:i], l.participants[i+1:]...)
	}
	if len(l.participants) == 0 {
		delete(m.lobbies, roomID)
		log.Info().Str("room_id", roomID).Msg("lobby emptied and removed")
		return Snapshot{}, false
	}
	return l.snapshot(), true
}

// Kick removes userID on an admin's behalf. Authorization is the caller's job.
func (m *Manager) Kick(roomID, userID string) (Snapshot, error) {
	m.mu.Lock()
	l, ok := m.lobbies[roomID]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}
	_, p := l.find(userID)
	m.mu.Unlock()
	if p == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrParticipantNotFound, userID)
	}

	snap, _ := m.RemoveParticipant(roomID, userID)
	if snap.RoomID == "" {
		snap = Snapshot{RoomID: roomID, Participants: []Participant{}}
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("participant kicked")
	return snap, nil
}

// SetReady flips a participant's ready flag.
func (m *Manager) SetReady(roomID, userID string, ready bool) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[roomID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}
	_, p := l.find(userID)
	if p == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrParticipantNotFound, userID)
	}
	p.Ready = ready
	return l.snapshot(), nil
}

// Participants lists a lobby's seats in join order.
func (m *Manager) Participants(roomID string) []Participant {
	snap, ok := m.Get(roomID)
	if !ok {
		return []Participant{}
	}
	return snap.Participants
}

// Clear deletes the lobby.
func (m *Manager) Clear(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lobbies, roomID)
}

// AddBots seats up to MaxBots ready bots, each with its own team.
func (m *Manager) AddBots(roomID string, count int, teams TeamCreator) ([]Participant, error) {
	if count <= 0 {
		return nil, ErrInvalidBotCount
	}
	if count > MaxBots {
		count = MaxBots
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}

	stamp := m.clock.Now().UnixMilli()
	added := make([]Participant, 0, count)
	for i := 1; i <= count; i++ {
		bot := Participant{
			UserID:   fmt.Sprintf("%s%d-%d", models.BotUserPrefix, stamp, i),
			Login:    fmt.Sprintf("Bot %d", i),
			TeamName: fmt.Sprintf("Bot %d Team", i),
			IsBot:    true,
		}
		m.upsertLocked(l, bot)
		_, seat := l.find(bot.UserID)
		seat.Ready = true
		if teams != nil {
			teams.EnsureTeam(bot.UserID, bot.TeamName, "bot-logo")
		}
		added = append(added, *seat)
	}
	log.Info().Str("room_id", roomID).Int("count", count).Msg("bots added to lobby")
	return added, nil
}
