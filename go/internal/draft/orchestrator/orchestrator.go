// Package orchestrator drives the draft clock: it ticks every live room,
// auto-picks when a turn expires, plays bot turns, and force-picks for users
// whose reconnect grace runs out.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/draft/events"
)

const (
	DefaultTickInterval = time.Second
	DefaultBotPickDelay = 2 * time.Second
	DefaultWorkers      = 4
)

// Options tunes the orchestrator. Zero values take the defaults.
type Options struct {
	TickInterval time.Duration
	BotPickDelay time.Duration
	Workers      int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.BotPickDelay <= 0 {
		o.BotPickDelay = DefaultBotPickDelay
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// job is one auto-pick request for a specific turn.
type job struct {
	roomID    string
	userID    string
	pickIndex int
	reason    string
}

type Orchestrator struct {
	svc         *draft.Service
	broadcaster draft.Broadcaster
	clock       clockwork.Clock
	opts        Options
	instanceID  string

	workCh chan job

	// Track in-flight work to prevent duplicate processing
	inFlight   map[string]bool
	inFlightMu sync.Mutex

	botTimers     map[string]clockwork.Timer
	lastScheduled map[string]int
	timersMu      sync.Mutex

	runMu   sync.Mutex
	running bool
}

// New builds an orchestrator and subscribes it to the service's state changes
// so bot turns are scheduled as soon as they begin.
func New(svc *draft.Service, broadcaster draft.Broadcaster, clock clockwork.Clock, opts Options) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if broadcaster == nil {
		broadcaster = draft.NopBroadcaster{}
	}
	opts = opts.withDefaults()
	o := &Orchestrator{
		svc:           svc,
		broadcaster:   broadcaster,
		clock:         clock,
		opts:          opts,
		instanceID:    uuid.New().String()[:8],
		workCh:        make(chan job, opts.Workers*2),
		inFlight:      make(map[string]bool),
		botTimers:     make(map[string]clockwork.Timer),
		lastScheduled: make(map[string]int),
	}
	svc.OnStateChange(o.onStateChange)
	return o
}

// Run ticks until ctx is cancelled. Workers exit with ctx and pending bot
// timers are cancelled on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runMu.Lock()
	o.running = true
	o.runMu.Unlock()

	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.opts.Workers).
		Dur("tick_interval", o.opts.TickInterval).
		Msg("draft orchestrator started")

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}

	ticker := o.clock.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			wg.Wait()
			log.Info().Str("instance", o.instanceID).Msg("draft orchestrator stopped")
			return nil
		case <-ticker.Chan():
			o.Tick()
		}
	}
}

// Running reports whether Run is active.
func (o *Orchestrator) Running() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.running
}

func (o *Orchestrator) shutdown() {
	o.runMu.Lock()
	o.running = false
	o.runMu.Unlock()

	o.timersMu.Lock()
	for roomID, timer := range o.botTimers {
		timer.Stop()
		log.Debug().Str("room_id", roomID).Msg("cancelled bot timer on shutdown")
	}
	o.botTimers = make(map[string]clockwork.Timer)
	o.lastScheduled = make(map[string]int)
	o.timersMu.Unlock()
}

// Tick broadcasts the clock of every running room and queues expired turns.
func (o *Orchestrator) Tick() {
	for _, room := range o.svc.Manager().Rooms() {
		st := room.State()
		if !st.Started || st.Paused || st.Completed {
			continue
		}
		o.broadcaster.Broadcast(st.RoomID, events.DraftTimer, events.TimerPayload{
			RoomID:           st.RoomID,
			TimerRemainingMs: st.Remaining(),
			PickIndex:        st.PickIndex,
			ActiveUserID:     st.ActiveUserID,
		})
		if room.IsTimerExpired() {
			log.Debug().
				Str("room_id", st.RoomID).
				Str("user_id", st.ActiveUserID).
				Int("pick_index", st.PickIndex).
				Msg("pick timer expired")
			o.enqueue(job{roomID: st.RoomID, userID: st.ActiveUserID, pickIndex: st.PickIndex, reason: draft.ReasonTimer})
		}
	}
}

// enqueue hands j to the pool unless the room already has work in flight.
func (o *Orchestrator) enqueue(j job) bool {
	o.inFlightMu.Lock()
	if o.inFlight[j.roomID] {
		o.inFlightMu.Unlock()
		return false
	}
	o.inFlight[j.roomID] = true
	o.inFlightMu.Unlock()

	select {
	case o.workCh <- j:
		return true
	default:
		o.done(j.roomID)
		log.Warn().Str("room_id", j.roomID).Str("reason", j.reason).Msg("work channel full, retrying next tick")
		return false
	}
}

func (o *Orchestrator) done(roomID string) {
	o.inFlightMu.Lock()
	delete(o.inFlight, roomID)
	o.inFlightMu.Unlock()
}
