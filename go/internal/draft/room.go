package draft

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/roster"
)

// MaxRounds equals the roster size: every team drafts one player per round.
const MaxRounds = models.MaxPlayersPerTeam

// DefaultTimerSec is the per-pick clock a Service starts with.
const DefaultTimerSec = 30

// Config describes a room at creation time.
type Config struct {
	RoomID     string   `json:"roomId"`
	PickOrder  []string `json:"pickOrder"`
	TimerSec   float64  `json:"timerSec"`
	SnakeDraft *bool    `json:"snakeDraft,omitempty"` // nil means true
}

// Validate rejects configs a room cannot run with.
func (c Config) Validate() error {
	if c.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidConfig)
	}
	if len(c.PickOrder) == 0 {
		return fmt.Errorf("%w: pickOrder must not be empty", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.PickOrder))
	for _, id := range c.PickOrder {
		if id == "" {
			return fmt.Errorf("%w: empty user id in pickOrder", ErrInvalidConfig)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate user %s in pickOrder", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	if c.TimerSec <= 0 {
		return fmt.Errorf("%w: timerSec must be positive", ErrInvalidConfig)
	}
	return nil
}

// Snake reports the effective snake setting.
func (c Config) Snake() bool {
	return c.SnakeDraft == nil || *c.SnakeDraft
}

// State is the derived snapshot broadcast to clients.
type State struct {
	RoomID           string             `json:"roomId"`
	Started          bool               `json:"started"`
	Completed        bool               `json:"completed"`
	Paused           bool               `json:"paused"`
	PickOrder        []string           `json:"pickOrder"`
	PickIndex        int                `json:"pickIndex"`
	Round            int                `json:"round"`
	Slot             int                `json:"slot"`
	EffectiveSlot    int                `json:"effectiveSlot"`
	TimerSec         float64            `json:"timerSec"`
	TimerStartedAt   *time.Time         `json:"timerStartedAt,omitempty"`
	TimerRemainingMs *int64             `json:"timerRemainingMs,omitempty"`
	ActiveUserID     string             `json:"activeUserId,omitempty"`
	SnakeDraft       bool               `json:"snakeDraft"`
	MaxRounds        int                `json:"maxRounds"`
	Picks            []models.DraftPick `json:"picks"`
}

// Remaining returns the timer value in ms, zero when no timer is running.
func (s State) Remaining() int64 {
	if s.TimerRemainingMs == nil {
		return 0
	}
	return *s.TimerRemainingMs
}

// Status summarizes the lifecycle flags.
func (s State) Status() models.DraftStatus {
	switch {
	case s.Completed:
		return models.DraftStatusCompleted
	case !s.Started:
		return models.DraftStatusNotStarted
	case s.Paused:
		return models.DraftStatusPaused
	default:
		return models.DraftStatusInProgress
	}
}

// Room is one draft's turn machine. pickIndex is the only stored position;
// round, slot and the active user are derived from it.
type Room struct {
	mu sync.Mutex

	cfg   Config
	clock clockwork.Clock

	started bool
	paused  bool

	pickIndex      int
	timerStartedAt time.Time // zero when no timer is anchored
	frozen         *time.Duration

	picks  []models.DraftPick
	picked map[string]bool
}

// NewRoom builds a not-started room.
func NewRoom(cfg Config, clock clockwork.Clock) *Room {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	snake := cfg.Snake()
	cfg.SnakeDraft = &snake
	cfg.PickOrder = append([]string(nil), cfg.PickOrder...)
	return &Room{
		cfg:    cfg,
		clock:  clock,
		picked: make(map[string]bool),
	}
}

// ID returns the room id.
func (r *Room) ID() string { return r.cfg.RoomID }

// Config returns a copy of the room configuration.
func (r *Room) Config() Config {
	c := r.cfg
	c.PickOrder = append([]string(nil), r.cfg.PickOrder...)
	return c
}

func (r *Room) timerDuration() time.Duration {
	return time.Duration(r.cfg.TimerSec * float64(time.Second))
}

// Start begins the draft. Calling it on a started room does nothing.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.paused = false
	r.pickIndex = 0
	r.timerStartedAt = r.clock.Now()
	r.frozen = nil
}

// Pause freezes the remaining time and clears the anchor. Completed rooms
// stay as they are.
func (r *Room) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.paused || r.stateLocked().Completed {
		return
	}
	if !r.timerStartedAt.IsZero() {
		remaining := r.timerDuration() - r.clock.Since(r.timerStartedAt)
		if remaining < 0 {
			remaining = 0
		}
		r.frozen = &remaining
	}
	r.paused = true
	r.timerStartedAt = time.Time{}
}

// Resume re-anchors the timer so the frozen remaining time is preserved.
func (r *Room) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || !r.paused || r.stateLocked().Completed {
		return
	}
	r.paused = false
	total := r.timerDuration()
	remaining := total
	if r.frozen != nil {
		remaining = *r.frozen
	}
	r.timerStartedAt = r.clock.Now().Add(-(total - remaining))
	r.frozen = nil
}

// State derives the current snapshot.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() State {
	n := len(r.cfg.PickOrder)
	round, slot := 1, 0
	if n > 0 {
		round = r.pickIndex/n + 1
		slot = r.pickIndex % n
	}
	snake := r.cfg.Snake()
	effective := slot
	if snake && round%2 == 0 {
		effective = n - 1 - slot
	}
	completed := round > MaxRounds

	st := State{
		RoomID:        r.cfg.RoomID,
		Started:       r.started,
		Completed:     completed,
		Paused:        r.paused,
		PickOrder:     append([]string(nil), r.cfg.PickOrder...),
		PickIndex:     r.pickIndex,
		Round:         round,
		Slot:          slot,
		EffectiveSlot: effective,
		TimerSec:      r.cfg.TimerSec,
		SnakeDraft:    snake,
		MaxRounds:     MaxRounds,
		Picks:         append([]models.DraftPick{}, r.picks...),
	}
	if r.started && !r.paused && !completed && n > 0 {
		st.ActiveUserID = r.cfg.PickOrder[effective]
	}

	switch {
	case r.paused && r.frozen != nil:
		ms := r.frozen.Milliseconds()
		st.TimerRemainingMs = &ms
	case !r.paused && !r.timerStartedAt.IsZero():
		anchor := r.timerStartedAt
		st.TimerStartedAt = &anchor
		remaining := r.timerDuration() - r.clock.Since(anchor)
		if remaining < 0 {
			remaining = 0
		}
		ms := remaining.Milliseconds()
		st.TimerRemainingMs = &ms
	}
	return st
}

// IsTimerExpired reports whether the active turn has used its whole clock.
func (r *Room) IsTimerExpired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.paused || r.timerStartedAt.IsZero() {
		return false
	}
	return r.clock.Since(r.timerStartedAt) >= r.timerDuration()
}

// MakePick validates and applies a pick for userID. players and teams are the
// live catalog maps; callers hold the catalog write lock. Nothing is mutated
// unless every check passes.
func (r *Room) MakePick(userID, playerID string, players map[string]*models.Player, teams map[string]*models.Team, auto bool) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.makePickLocked(userID, playerID, players, teams, auto)
}

func (r *Room) makePickLocked(userID, playerID string, players map[string]*models.Player, teams map[string]*models.Team, auto bool) (State, error) {
	if !r.started {
		return State{}, ErrNotStarted
	}
	if r.paused {
		return State{}, ErrPaused
	}

	player, ok := players[playerID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	// checked before the turn so a duplicate pick always gets the same answer
	if r.picked[playerID] || player.IsDrafted() {
		return State{}, fmt.Errorf("%w: %s", ErrAlreadyPicked, playerID)
	}

	st := r.stateLocked()
	if st.ActiveUserID != userID {
		return State{}, ErrNotYourTurn
	}

	team, ok := teams[userID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrTeamNotFound, userID)
	}
	if roster.IsTeamFull(team) {
		return State{}, fmt.Errorf("%w (max %d players)", ErrTeamFull, models.MaxPlayersPerTeam)
	}

	overCap := !roster.CanAffordPlayer(team, player)
	position, slotOK := roster.FindAssignablePosition(team, players, player)
	if overCap {
		return State{}, fmt.Errorf("%w: remaining $%d, player cost $%d", ErrSalaryCap, roster.RemainingCap(team), player.CapHit)
	}
	if !slotOK {
		return State{}, fmt.Errorf("%w for eligible positions %v", ErrNoSlot, roster.EligiblePositions(player))
	}

	if err := roster.AssignPlayerToSlot(team, position, playerID); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrNoSlot, err)
	}
	owner := userID
	week := 1
	player.DraftedBy = &owner
	player.DraftWeek = &week
	team.Players = append(team.Players, playerID)
	team.SalaryTotal += player.CapHit

	now := r.clock.Now()
	r.picks = append(r.picks, models.DraftPick{
		RoomID:    r.cfg.RoomID,
		PickIndex: r.pickIndex,
		Round:     st.Round,
		Slot:      st.Slot,
		UserID:    userID,
		PlayerID:  playerID,
		AutoPick:  auto,
		Timestamp: now,
	})
	r.picked[playerID] = true
	r.pickIndex++
	r.timerStartedAt = now
	r.frozen = nil
	return r.stateLocked(), nil
}

// SelectAutoPick returns the best undrafted player userID can afford and slot,
// ranked by season points. Ties go to the lower player id.
func SelectAutoPick(userID string, players map[string]*models.Player, teams map[string]*models.Team) (*models.Player, error) {
	team, ok := teams[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, userID)
	}

	candidates := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p.IsDrafted() || !roster.CanAffordPlayer(team, p) {
			continue
		}
		if _, ok := roster.FindAssignablePosition(team, players, p); !ok {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %s (salary %d, roster %d/%d)",
			ErrNoEligiblePlayer, userID, team.SalaryTotal, len(team.Players), models.MaxPlayersPerTeam)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Stats.Points != b.Stats.Points {
			return a.Stats.Points > b.Stats.Points
		}
		if a.CapHit != b.CapHit {
			return a.CapHit < b.CapHit
		}
		return a.ID < b.ID
	})
	return candidates[0], nil
}

// MakeAutoPick picks SelectAutoPick's choice on behalf of userID.
func (r *Room) MakeAutoPick(userID string, players map[string]*models.Player, teams map[string]*models.Team) (State, models.DraftPick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	choice, err := SelectAutoPick(userID, players, teams)
	if err != nil {
		return State{}, models.DraftPick{}, err
	}
	st, err := r.makePickLocked(userID, choice.ID, players, teams, true)
	if err != nil {
		return State{}, models.DraftPick{}, err
	}
	return st, r.picks[len(r.picks)-1], nil
}

// Skip forfeits the active user's turn. It is the fallback when auto-pick
// finds no eligible player, so the draft cannot stall on that user.
func (r *Room) Skip(userID string) (State, models.DraftPick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return State{}, models.DraftPick{}, ErrNotStarted
	}
	if r.paused {
		return State{}, models.DraftPick{}, ErrPaused
	}
	if r.stateLocked().ActiveUserID != userID {
		return State{}, models.DraftPick{}, ErrNotYourTurn
	}
	pick := r.skipLocked(userID, r.clock.Now())
	return r.stateLocked(), pick, nil
}

func (r *Room) skipLocked(userID string, now time.Time) models.DraftPick {
	st := r.stateLocked()
	pick := models.DraftPick{
		RoomID:    r.cfg.RoomID,
		PickIndex: r.pickIndex,
		Round:     st.Round,
		Slot:      st.Slot,
		UserID:    userID,
		AutoPick:  true,
		Skipped:   true,
		Timestamp: now,
	}
	r.picks = append(r.picks, pick)
	r.pickIndex++
	r.timerStartedAt = now
	r.frozen = nil
	return pick
}

// LastPick returns the most recent pick record.
func (r *Room) LastPick() (models.DraftPick, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.picks) == 0 {
		return models.DraftPick{}, false
	}
	return r.picks[len(r.picks)-1], true
}
