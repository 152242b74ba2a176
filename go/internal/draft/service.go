package draft

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/draft/events"
	"github.com/mcdev12/puckdraft/go/internal/draft/outbox"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

// Broadcaster fans realtime messages out to connected clients. A topic is a
// room id or a lobby topic.
type Broadcaster interface {
	Broadcast(topic, eventType string, data any)
	SendToUser(userID, eventType string, data any)
}

// Recorder accepts outbox entries without blocking.
type Recorder interface {
	Enqueue(entry outbox.Entry)
}

// NopBroadcaster drops every message.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, string, any)  {}
func (NopBroadcaster) SendToUser(string, string, any) {}

// Auto-pick reasons carried on draft:autopick and draft:skipped.
const (
	ReasonTimer      = "timer"
	ReasonBot        = "bot"
	ReasonReconnect  = "reconnect_grace"
	ReasonNoEligible = "no eligible player"
)

// AutoPickResult says what an auto-pick did with the turn.
type AutoPickResult struct {
	State   State
	Pick    models.DraftPick
	Skipped bool
}

// Service applies draft mutations to rooms and the catalog, then records and
// broadcasts them. Every caller path (HTTP, RPC, websocket, timers) goes through it.
type Service struct {
	manager     *Manager
	store       *catalog.Store
	repo        persistence.Repository
	recorder    Recorder
	broadcaster Broadcaster
	clock       clockwork.Clock

	mu              sync.RWMutex
	defaultTimerSec float64
	listeners       []func(State)
}

func NewService(manager *Manager, store *catalog.Store, repo persistence.Repository, recorder Recorder, broadcaster Broadcaster, clock clockwork.Clock) *Service {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		manager:         manager,
		store:           store,
		repo:            repo,
		recorder:        recorder,
		broadcaster:     broadcaster,
		clock:           clock,
		defaultTimerSec: DefaultTimerSec,
	}
}

// SetDefaultTimerSec sets the per-pick clock for starts that send no timerSec.
// Non-positive values are ignored.
func (s *Service) SetDefaultTimerSec(sec float64) {
	if sec <= 0 {
		return
	}
	s.mu.Lock()
	s.defaultTimerSec = sec
	s.mu.Unlock()
}

// DefaultTimerSec reports the per-pick clock applied to starts without one.
func (s *Service) DefaultTimerSec() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultTimerSec
}

// OnStateChange registers fn to run after every state transition.
func (s *Service) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(st State) {
	s.mu.RLock()
	listeners := append([]func(State){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(st)
	}
}

// Manager exposes the room registry.
func (s *Service) Manager() *Manager { return s.manager }

// Store exposes the catalog.
func (s *Service) Store() *catalog.Store { return s.store }

// Room looks up a live room.
func (s *Service) Room(roomID string) (*Room, error) {
	room, ok := s.manager.Get(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return room, nil
}

// State returns the derived state of a live room.
func (s *Service) State(roomID string) (State, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return State{}, err
	}
	return room.State(), nil
}

// Active returns the first room that is started and not completed.
func (s *Service) Active() (State, bool) {
	for _, room := range s.manager.Rooms() {
		st := room.State()
		if st.Started && !st.Completed {
			return st, true
		}
	}
	return State{}, false
}

// Drafting returns the room where userID holds a seat in an unfinished draft.
func (s *Service) Drafting(userID string) (string, bool) {
	for _, room := range s.manager.Rooms() {
		st := room.State()
		if st.Started && !st.Completed && slices.Contains(st.PickOrder, userID) {
			return st.RoomID, true
		}
	}
	return "", false
}

// EnsureTeams creates a team for every user that has none, named after the
// registered user when known.
func (s *Service) EnsureTeams(userIDs []string) {
	for _, id := range userIDs {
		name, logo := "Team "+id, "default-logo"
		if u, err := s.store.User(id); err == nil {
			name = u.TeamName
			if u.Logo != "" {
				logo = u.Logo
			}
		}
		s.store.EnsureTeam(id, name, logo)
	}
}

// StartDraft creates (or reuses) the room, starts it and records it.
// Starting a running room returns its state unchanged.
func (s *Service) StartDraft(ctx context.Context, cfg Config) (State, error) {
	if cfg.TimerSec == 0 {
		cfg.TimerSec = s.DefaultTimerSec()
	}
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}

	s.EnsureTeams(cfg.PickOrder)
	room, created := s.manager.GetOrCreate(cfg)
	alreadyStarted := room.State().Started
	room.Start()
	st := room.State()

	if !alreadyStarted {
		rc := room.Config()
		now := s.clock.Now()
		record := persistence.RoomRecord{
			RoomID:     rc.RoomID,
			TimerSec:   rc.TimerSec,
			SnakeDraft: rc.Snake(),
			CreatedAt:  now,
			PickOrder:  rc.PickOrder,
		}
		s.record(outbox.Entry{Room: &record}, rc.RoomID, events.TypeDraftStarted, events.DraftStartedPayload{
			RoomID:      rc.RoomID,
			PickOrder:   rc.PickOrder,
			TimerSec:    rc.TimerSec,
			SnakeDraft:  rc.Snake(),
			StartedAt:   now,
			TotalRounds: MaxRounds,
			TotalPicks:  MaxRounds * len(rc.PickOrder),
		})
		log.Info().
			Str("room_id", rc.RoomID).
			Strs("pick_order", rc.PickOrder).
			Float64("timer_sec", rc.TimerSec).
			Bool("created", created).
			Msg("draft started")
	}

	s.broadcaster.Broadcast(st.RoomID, events.DraftState, st)
	s.notify(st)
	return st, nil
}

// MakePick applies userID's pick and returns the new state with the caller's team.
func (s *Service) MakePick(ctx context.Context, roomID, userID, playerID string) (State, *models.Team, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return State{}, nil, err
	}

	var (
		st   State
		team *models.Team
	)
	err = s.store.Update(func(players map[string]*models.Player, teams map[string]*models.Team) error {
		var perr error
		st, perr = room.MakePick(userID, playerID, players, teams, false)
		if perr != nil {
			return perr
		}
		team = teams[userID].Clone()
		return nil
	})
	if err != nil {
		log.Debug().Err(err).
			Str("room_id", roomID).
			Str("user_id", userID).
			Str("player_id", playerID).
			Msg("pick rejected")
		return State{}, nil, err
	}

	pick := st.Picks[len(st.Picks)-1]
	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Str("player_id", playerID).
		Int("pick_index", pick.PickIndex).
		Int("round", pick.Round).
		Msg("draft pick")

	s.recordPick(pick, team)
	s.broadcaster.Broadcast(roomID, events.DraftState, st)
	s.afterTurn(st)
	return st, team, nil
}

// AutoPick picks for userID on the server's behalf. When no player fits the
// team the turn is skipped so the draft keeps moving.
func (s *Service) AutoPick(ctx context.Context, roomID, userID, reason string) (AutoPickResult, error) {
	return s.autoPick(ctx, roomID, userID, -1, reason)
}

// AutoPickTurn is AutoPick guarded by the pick index the caller observed, so a
// stale timer cannot spend the user's next turn.
func (s *Service) AutoPickTurn(ctx context.Context, roomID, userID string, pickIndex int, reason string) (AutoPickResult, error) {
	return s.autoPick(ctx, roomID, userID, pickIndex, reason)
}

func (s *Service) autoPick(ctx context.Context, roomID, userID string, pickIndex int, reason string) (AutoPickResult, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return AutoPickResult{}, err
	}

	var (
		res  AutoPickResult
		team *models.Team
	)
	err = s.store.Update(func(players map[string]*models.Player, teams map[string]*models.Team) error {
		// every pick runs under the catalog lock, so the index cannot move here
		if current := room.State().PickIndex; pickIndex >= 0 && current != pickIndex {
			return fmt.Errorf("%w: pick %d already made, now at %d", ErrNotYourTurn, pickIndex, current)
		}
		st, pick, perr := room.MakeAutoPick(userID, players, teams)
		if errors.Is(perr, ErrNoEligiblePlayer) || errors.Is(perr, ErrTeamNotFound) {
			log.Warn().Err(perr).
				Str("room_id", roomID).
				Str("user_id", userID).
				Msg("auto-pick exhausted, skipping turn")
			st, pick, perr = room.Skip(userID)
			res.Skipped = true
		}
		if perr != nil {
			return perr
		}
		res.State, res.Pick = st, pick
		if t, ok := teams[userID]; ok {
			team = t.Clone()
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).
			Str("room_id", roomID).
			Str("user_id", userID).
			Str("reason", reason).
			Msg("auto-pick failed")
		return AutoPickResult{}, err
	}

	if res.Skipped {
		s.recordSkip(res.Pick, ReasonNoEligible)
		s.broadcaster.Broadcast(roomID, events.DraftState, res.State)
		s.broadcaster.Broadcast(roomID, events.DraftSkipped, events.SkippedPayload{
			RoomID:    roomID,
			UserID:    userID,
			PickIndex: res.Pick.PickIndex,
			Reason:    ReasonNoEligible,
		})
	} else {
		log.Info().
			Str("room_id", roomID).
			Str("user_id", userID).
			Str("player_id", res.Pick.PlayerID).
			Int("pick_index", res.Pick.PickIndex).
			Str("reason", reason).
			Msg("auto-pick made")
		s.recordPick(res.Pick, team)
		s.broadcaster.Broadcast(roomID, events.DraftState, res.State)
		s.broadcaster.Broadcast(roomID, events.DraftAutoPick, events.AutoPickPayload{
			RoomID:    roomID,
			PickIndex: res.Pick.PickIndex,
			Pick:      res.Pick,
			Reason:    reason,
		})
	}
	s.afterTurn(res.State)
	return res, nil
}

// ForceAutoPick resumes a paused room and auto-picks for userID if it is
// still that user's turn. Used when a reconnect grace window runs out.
func (s *Service) ForceAutoPick(ctx context.Context, roomID, userID string) (AutoPickResult, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return AutoPickResult{}, err
	}
	room.Resume()
	if active := room.State().ActiveUserID; active != userID {
		st := room.State()
		s.broadcaster.Broadcast(roomID, events.DraftState, st)
		s.notify(st)
		return AutoPickResult{State: st}, fmt.Errorf("%w: active user is %q", ErrNotYourTurn, active)
	}
	return s.AutoPick(ctx, roomID, userID, ReasonReconnect)
}

// Pause freezes the room's timer.
func (s *Service) Pause(ctx context.Context, roomID, reason string) (State, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return State{}, err
	}
	before := room.State()
	room.Pause()
	st := room.State()

	if !before.Paused && st.Paused {
		s.record(outbox.Entry{}, roomID, events.TypeDraftPaused, events.DraftPausedPayload{
			RoomID:   roomID,
			PausedAt: s.clock.Now(),
			Reason:   reason,
		})
		log.Info().Str("room_id", roomID).Str("reason", reason).Int64("remaining_ms", st.Remaining()).Msg("draft paused")
	}
	s.broadcaster.Broadcast(roomID, events.DraftState, st)
	s.notify(st)
	return st, nil
}

// Resume restarts the room's timer with the time left at pause.
func (s *Service) Resume(ctx context.Context, roomID string) (State, error) {
	room, err := s.Room(roomID)
	if err != nil {
		return State{}, err
	}
	before := room.State()
	room.Resume()
	st := room.State()

	if before.Paused && !st.Paused {
		s.record(outbox.Entry{}, roomID, events.TypeDraftResumed, events.DraftResumedPayload{
			RoomID:    roomID,
			ResumedAt: s.clock.Now(),
		})
		log.Info().Str("room_id", roomID).Int64("remaining_ms", st.Remaining()).Msg("draft resumed")
	}
	s.broadcaster.Broadcast(roomID, events.DraftState, st)
	s.notify(st)
	return st, nil
}

// Rooms lists the persisted room configurations.
func (s *Service) Rooms(ctx context.Context) ([]persistence.RoomRecord, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if rooms == nil {
		rooms = []persistence.RoomRecord{}
	}
	return rooms, nil
}

// History lists a room's persisted pick log.
func (s *Service) History(ctx context.Context, roomID string) ([]persistence.PickRecord, error) {
	picks, err := s.repo.ListPicks(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	return picks, nil
}

// Restore rebuilds every persisted room into the manager.
func (s *Service) Restore(ctx context.Context) (int, error) {
	n, err := Restore(ctx, s.manager, s.store, s.repo)
	if err != nil {
		return n, err
	}
	for _, room := range s.manager.Rooms() {
		s.notify(room.State())
	}
	return n, nil
}

func (s *Service) afterTurn(st State) {
	if st.Completed {
		skipped := 0
		for _, p := range st.Picks {
			if p.Skipped {
				skipped++
			}
		}
		s.record(outbox.Entry{}, st.RoomID, events.TypeDraftCompleted, events.DraftCompletedPayload{
			RoomID:      st.RoomID,
			CompletedAt: s.clock.Now(),
			TotalPicks:  len(st.Picks),
			Skipped:     skipped,
		})
		s.broadcaster.Broadcast(st.RoomID, events.DraftCompleted, events.CompletedPayload{RoomID: st.RoomID, FinalState: st})
		log.Info().Str("room_id", st.RoomID).Int("picks", len(st.Picks)).Msg("draft completed")
	}
	s.notify(st)
}

func (s *Service) recordPick(pick models.DraftPick, team *models.Team) {
	record := pickRecord(pick)
	payload := events.PickMadePayload{
		RoomID:    pick.RoomID,
		PickIndex: pick.PickIndex,
		Round:     pick.Round,
		Slot:      pick.Slot,
		UserID:    pick.UserID,
		PlayerID:  pick.PlayerID,
		AutoPick:  pick.AutoPick,
		MadeAt:    pick.Timestamp,
	}
	if team != nil {
		payload.TeamName = team.Name
	}
	if p, err := s.store.Player(pick.PlayerID); err == nil {
		payload.PlayerName = p.FullName()
		payload.CapHit = p.CapHit
	}
	s.record(outbox.Entry{Pick: &record}, pick.RoomID, events.TypePickMade, payload)
}

func (s *Service) recordSkip(pick models.DraftPick, reason string) {
	record := pickRecord(pick)
	s.record(outbox.Entry{Pick: &record}, pick.RoomID, events.TypePickSkipped, events.PickSkippedPayload{
		RoomID:    pick.RoomID,
		PickIndex: pick.PickIndex,
		UserID:    pick.UserID,
		Reason:    reason,
		SkippedAt: pick.Timestamp,
	})
}

func (s *Service) record(entry outbox.Entry, roomID, eventType string, payload any) {
	if s.recorder == nil {
		return
	}
	ev, err := outbox.NewEvent(roomID, eventType, payload, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", eventType).Msg("build outbox event")
	} else {
		entry.Event = ev
	}
	s.recorder.Enqueue(entry)
}

func pickRecord(p models.DraftPick) persistence.PickRecord {
	return persistence.PickRecord{
		RoomID:    p.RoomID,
		PickIndex: p.PickIndex,
		Round:     p.Round,
		Slot:      p.Slot,
		UserID:    p.UserID,
		PlayerID:  p.PlayerID,
		Autopick:  p.AutoPick,
		Skipped:   p.Skipped,
		CreatedAt: p.Timestamp,
	}
}
