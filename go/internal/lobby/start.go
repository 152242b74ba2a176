package lobby

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/draft/events"
)

// StartOptions shapes the draft a lobby turns into.
type StartOptions struct {
	Shuffle   bool
	Rand      *rand.Rand // nil uses the manager's source
	Countdown time.Duration
	TimerSec  float64
}

// PickOrder returns participant ids in join order, or shuffled with
// Fisher-Yates when shuffle is set.
func (m *Manager) PickOrder(roomID string, shuffle bool, rng *rand.Rand) ([]string, error) {
	snap, ok := m.Get(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}
	order := make([]string, len(snap.Participants))
	for i, p := range snap.Participants {
		order[i] = p.UserID
	}
	if !shuffle {
		return order, nil
	}

	if rng == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		rng = m.rng
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Start fixes the pick order, tells every participant their seat, and opens
// the draft room when the countdown ends. It returns the pick order.
func (m *Manager) Start(roomID string, opts StartOptions) ([]string, error) {
	if opts.Countdown <= 0 {
		opts.Countdown = DefaultCountdown
	}
	if opts.TimerSec <= 0 {
		opts.TimerSec = DefaultTimerSec
	}

	order, err := m.PickOrder(roomID, opts.Shuffle, opts.Rand)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, ErrNoParticipants
	}

	m.mu.Lock()
	l, ok := m.lobbies[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, roomID)
	}
	if l.starting {
		m.mu.Unlock()
		return nil, ErrAlreadyStarting
	}
	l.starting = true
	m.mu.Unlock()

	for i, userID := range order {
		m.broadcaster.SendToUser(userID, events.DraftYourPosition, events.YourPositionPayload{
			Position: i + 1,
			Total:    len(order),
		})
	}
	m.broadcaster.Broadcast(events.LobbyTopic(roomID), events.DraftStarting, events.StartingPayload{
		Countdown: int(opts.Countdown / time.Second),
		PickOrder: order,
	})
	log.Info().
		Str("room_id", roomID).
		Strs("pick_order", order).
		Dur("countdown", opts.Countdown).
		Msg("lobby countdown started")

	m.clock.AfterFunc(opts.Countdown, func() {
		m.launch(roomID, order, opts.TimerSec)
	})
	return order, nil
}

func (m *Manager) launch(roomID string, order []string, timerSec float64) {
	snake := true
	_, err := m.starter.StartDraft(context.Background(), draft.Config{
		RoomID:     roomID,
		PickOrder:  order,
		TimerSec:   timerSec,
		SnakeDraft: &snake,
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("draft start from lobby failed")
		m.mu.Lock()
		if l, ok := m.lobbies[roomID]; ok {
			l.starting = false
		}
		m.mu.Unlock()
		m.broadcaster.Broadcast(events.LobbyTopic(roomID), events.LobbyError, events.ErrorPayload{Message: err.Error()})
		return
	}

	m.broadcaster.Broadcast(events.LobbyTopic(roomID), events.LobbyStart, events.LobbyStartPayload{
		RoomID:    roomID,
		PickOrder: order,
	})
	m.Clear(roomID)
}
