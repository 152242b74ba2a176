// Package catalog owns the shared player, team and user tables that every
// draft room reads and mutates.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

var (
	ErrPlayerNotFound    = errors.New("Player not found")
	ErrUserNotFound      = errors.New("User not found")
	ErrLoginTaken        = errors.New("Login already exists")
	ErrInvalidRole       = errors.New("Invalid role")
	ErrNoValidPositions  = errors.New("No valid positions provided")
	ErrEmptyPositionList = errors.New("eligiblePositions must be a non-empty array")
)

// Store is the in-process catalog. Players are keyed by id, teams by owner id.
// Room mutations run inside Update so the draftedBy and salaryTotal fields are
// only touched by one pick at a time.
type Store struct {
	mu      sync.RWMutex
	players map[string]*models.Player
	order   []string
	teams   map[string]*models.Team
	users   map[string]*models.User
	clock   clockwork.Clock
}

// NewStore returns an empty catalog.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		players: make(map[string]*models.Player),
		teams:   make(map[string]*models.Team),
		users:   make(map[string]*models.User),
		clock:   clock,
	}
}

// Update runs fn with exclusive access to the live player and team maps.
func (s *Store) Update(fn func(players map[string]*models.Player, teams map[string]*models.Team) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.players, s.teams)
}

// View runs fn with shared access. fn must not mutate the maps.
func (s *Store) View(fn func(players map[string]*models.Player, teams map[string]*models.Team) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.players, s.teams)
}

// SetPlayers replaces the whole player table, keeping the given order.
func (s *Store) SetPlayers(players []*models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[string]*models.Player, len(players))
	s.order = s.order[:0]
	for _, p := range players {
		if _, dup := s.players[p.ID]; dup {
			log.Warn().Str("player_id", p.ID).Msg("duplicate player id in catalog, keeping first")
			continue
		}
		s.players[p.ID] = p
		s.order = append(s.order, p.ID)
	}
}

// Player returns a copy of the player.
func (s *Store) Player(id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p.Clone(), nil
}

// Players returns copies of every player in catalog order.
func (s *Store) Players() []*models.Player {
	return s.collect(func(*models.Player) bool { return true })
}

// AvailablePlayers returns copies of the undrafted players in catalog order.
func (s *Store) AvailablePlayers() []*models.Player {
	return s.collect(func(p *models.Player) bool { return !p.IsDrafted() })
}

func (s *Store) collect(keep func(*models.Player) bool) []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Player, 0, len(s.order))
	for _, id := range s.order {
		if p := s.players[id]; keep(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// SetEligiblePositions overrides a player's eligible list. Unknown positions
// are dropped; an empty result is rejected.
func (s *Store) SetEligiblePositions(playerID string, positions []models.Position) ([]models.Position, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyPositionList
	}
	cleaned := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if p.Valid() {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoValidPositions
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	p.EligiblePositions = cleaned
	return append([]models.Position(nil), cleaned...), nil
}

// CreateTeam registers a fresh team for owner, replacing any previous one.
func (s *Store) CreateTeam(ownerID, name, logo string, week int) *models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := models.NewTeam(ownerID, name, logo, week)
	s.teams[ownerID] = team
	return team.Clone()
}

// EnsureTeam creates a team for owner only when none exists.
// It reports whether a team was created.
func (s *Store) EnsureTeam(ownerID, name, logo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[ownerID]; ok {
		return false
	}
	s.teams[ownerID] = models.NewTeam(ownerID, name, logo, 1)
	log.Debug().Str("user_id", ownerID).Str("team_name", name).Msg("created team")
	return true
}

// Team returns a copy of owner's team.
func (s *Store) Team(ownerID string) (*models.Team, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[ownerID]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Teams returns copies of every team ordered by owner id.
func (s *Store) Teams() []*models.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

// ResetDraft clears draft ownership on every player and empties every team.
func (s *Store) ResetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		p.DraftedBy = nil
		p.DraftWeek = nil
	}
	for _, t := range s.teams {
		t.Reset()
	}
}

// CreateUser registers a user with a generated id.
func (s *Store) CreateUser(login, teamName, logo string, role models.UserRole) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Login == login {
			return nil, fmt.Errorf("%w: %s", ErrLoginTaken, login)
		}
	}
	u := &models.User{
		ID:        uuid.NewString(),
		Login:     login,
		TeamName:  teamName,
		Logo:      logo,
		Role:      role,
		CreatedAt: s.clock.Now(),
	}
	s.users[u.ID] = u
	c := *u
	return &c, nil
}

// EnsureUser registers an externally authenticated user id when unseen.
func (s *Store) EnsureUser(id, login string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c
	}
	if login == "" {
		login = id
	}
	u := &models.User{
		ID:        id,
		Login:     login,
		TeamName:  login + "'s Team",
		Role:      models.UserRoleUser,
		CreatedAt: s.clock.Now(),
	}
	s.users[id] = u
	c := *u
	return &c
}

// User looks a user up by id.
func (s *Store) User(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

// UserPatch carries the user fields an admin may change. Nil and empty
// fields are left alone.
type UserPatch struct {
	Login    *string          `json:"login,omitempty"`
	TeamName *string          `json:"teamName,omitempty"`
	Logo     *string          `json:"logo,omitempty"`
	Role     *models.UserRole `json:"role,omitempty"`
}

// UpdateUser applies patch to a user. A new team name or logo is copied onto
// the user's team when one exists.
func (s *Store) UpdateUser(id string, patch UserPatch) (*models.User, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, *patch.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if patch.Login != nil && *patch.Login != "" && *patch.Login != u.Login {
		for _, other := range s.users {
			if other.Login == *patch.Login {
				return nil, fmt.Errorf("%w: %s", ErrLoginTaken, *patch.Login)
			}
		}
		u.Login = *patch.Login
	}
	team := s.teams[id]
	if patch.TeamName != nil && *patch.TeamName != "" {
		u.TeamName = *patch.TeamName
		if team != nil {
			team.Name = u.TeamName
		}
	}
	if patch.Logo != nil && *patch.Logo != "" {
		u.Logo = *patch.Logo
		if team != nil {
			team.Logo = u.Logo
		}
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	c := *u
	return &c, nil
}

// DeleteUser removes a user together with the team they own.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	delete(s.users, id)
	delete(s.teams, id)
	log.Info().Str("user_id", id).Msg("deleted user")
	return nil
}

// UserByLogin looks a user up by login name.
func (s *Store) UserByLogin(login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Login == login {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, login)
}

// Users returns every user ordered by creation time.
func (s *Store) Users() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
