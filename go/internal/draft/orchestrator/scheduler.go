package orchestrator

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/models"
)

// onStateChange keeps exactly one bot timer per room, armed only while a bot
// holds the turn of a running draft.
func (o *Orchestrator) onStateChange(st draft.State) {
	if !st.Started || st.Paused || st.Completed || !models.IsBot(st.ActiveUserID) {
		o.cancelTimer(st.RoomID)
		return
	}
	o.scheduleBotPick(st.RoomID, st.ActiveUserID, st.PickIndex)
}

// scheduleBotPick arms the bot timer for one turn. Scheduling the same turn
// twice keeps the first timer.
func (o *Orchestrator) scheduleBotPick(roomID, botID string, pickIndex int) {
	o.timersMu.Lock()
	if last, ok := o.lastScheduled[roomID]; ok && last == pickIndex {
		if _, armed := o.botTimers[roomID]; armed {
			o.timersMu.Unlock()
			return
		}
	}
	o.lastScheduled[roomID] = pickIndex
	o.timersMu.Unlock()

	timer := o.clock.AfterFunc(o.opts.BotPickDelay, func() {
		o.removeTimer(roomID, pickIndex)
		if o.enqueue(job{roomID: roomID, userID: botID, pickIndex: pickIndex, reason: draft.ReasonBot}) {
			return
		}
		// another job holds the room; try again if the turn is still ours
		if st, err := o.svc.State(roomID); err == nil && st.PickIndex == pickIndex && st.ActiveUserID == botID {
			o.scheduleBotPick(roomID, botID, pickIndex)
		}
	})
	o.replaceTimer(roomID, timer)

	log.Debug().
		Str("room_id", roomID).
		Str("user_id", botID).
		Int("pick_index", pickIndex).
		Dur("delay", o.opts.BotPickDelay).
		Msg("scheduled bot pick")
}

// Nudge plays the bot's turn now instead of waiting for its timer.
func (o *Orchestrator) Nudge(roomID, botID string) error {
	st, err := o.svc.State(roomID)
	if err != nil {
		return err
	}
	if !models.IsBot(botID) {
		return fmt.Errorf("%s is not a bot", botID)
	}
	if st.ActiveUserID != botID {
		return fmt.Errorf("%w: active user is %q", draft.ErrNotYourTurn, st.ActiveUserID)
	}
	o.cancelTimer(roomID)
	o.enqueue(job{roomID: roomID, userID: botID, pickIndex: st.PickIndex, reason: draft.ReasonBot})
	return nil
}

// PendingBotPick reports whether a bot timer is armed for roomID.
func (o *Orchestrator) PendingBotPick(roomID string) bool {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	_, ok := o.botTimers[roomID]
	return ok
}

// replaceTimer swaps in a room's timer, stopping the one it replaces.
func (o *Orchestrator) replaceTimer(roomID string, timer clockwork.Timer) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if existing, ok := o.botTimers[roomID]; ok {
		existing.Stop()
	}
	o.botTimers[roomID] = timer
}

// cancelTimer stops and forgets a room's bot timer.
func (o *Orchestrator) cancelTimer(roomID string) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if timer, ok := o.botTimers[roomID]; ok {
		timer.Stop()
		delete(o.botTimers, roomID)
		log.Debug().Str("room_id", roomID).Msg("cancelled bot timer")
	}
	delete(o.lastScheduled, roomID)
}

// removeTimer forgets a fired timer unless a newer turn replaced it.
func (o *Orchestrator) removeTimer(roomID string, pickIndex int) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if o.lastScheduled[roomID] != pickIndex {
		return
	}
	delete(o.botTimers, roomID)
	delete(o.lastScheduled, roomID)
}
