package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
)

// DefaultReconnectGrace is how long a disconnected active user keeps the turn.
const DefaultReconnectGrace = 60 * time.Second

// ForcePicker resumes a room and auto-picks for a user.
type ForcePicker interface {
	ForceAutoPick(ctx context.Context, roomID, userID string) (draft.AutoPickResult, error)
}

type graceTimer struct {
	userID string
	timer  clockwork.Timer
	seq    uint64
}

// Grace holds one reconnect window per room. When a window runs out the
// user's turn is auto-picked.
type Grace struct {
	picker   ForcePicker
	clock    clockwork.Clock
	duration time.Duration

	mu     sync.Mutex
	seq    uint64
	timers map[string]graceTimer
}

func NewGrace(picker ForcePicker, clock clockwork.Clock, duration time.Duration) *Grace {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultReconnectGrace
	}
	return &Grace{
		picker:   picker,
		clock:    clock,
		duration: duration,
		timers:   make(map[string]graceTimer),
	}
}

// Duration is the default window length.
func (g *Grace) Duration() time.Duration { return g.duration }

// Arm starts userID's window in roomID, replacing any window already open
// there. A non-positive grace uses the default.
func (g *Grace) Arm(roomID, userID string, grace time.Duration) {
	if grace <= 0 {
		grace = g.duration
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.timers[roomID]; ok {
		existing.timer.Stop()
	}

	g.seq++
	seq := g.seq
	timer := g.clock.AfterFunc(grace, func() {
		g.mu.Lock()
		current, ok := g.timers[roomID]
		if !ok || current.seq != seq {
			g.mu.Unlock()
			return
		}
		delete(g.timers, roomID)
		g.mu.Unlock()

		log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("reconnect grace expired, auto-picking")
		if _, err := g.picker.ForceAutoPick(context.Background(), roomID, userID); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("grace auto-pick failed")
		}
	})
	g.timers[roomID] = graceTimer{userID: userID, timer: timer, seq: seq}

	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Dur("grace", grace).
		Msg("reconnect grace armed")
}

// Cancel closes userID's window in roomID. It reports whether one was open.
func (g *Grace) Cancel(roomID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.timers[roomID]
	if !ok || current.userID != userID {
		return false
	}
	current.timer.Stop()
	delete(g.timers, roomID)
	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("reconnect grace cancelled")
	return true
}

// Waiting returns the user whose window is open in roomID.
func (g *Grace) Waiting(roomID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.timers[roomID]
	return current.userID, ok
}

// Stop cancels every open window.
func (g *Grace) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for roomID, t := range g.timers {
		t.timer.Stop()
		delete(g.timers, roomID)
	}
}
