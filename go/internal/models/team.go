package models

import (
	"github.com/google/uuid"
)

const (
	// SalaryCap is the per-team budget ($95.5M)
	SalaryCap int64 = 95_500_000
	// MaxPlayersPerTeam is the roster size and also the number of draft rounds
	MaxPlayersPerTeam = 6
)

// SlotLayout is the fixed order of roster billets on every team
var SlotLayout = []Position{
	PositionLeftWing,
	PositionCenter,
	PositionRightWing,
	PositionDefense,
	PositionDefense,
	PositionGoaltender,
}

// RosterLimits caps how many players of each position a team may hold.
// Used for teams that predate explicit slots.
var RosterLimits = map[Position]int{
	PositionCenter:     1,
	PositionLeftWing:   1,
	PositionRightWing:  1,
	PositionDefense:    2,
	PositionGoaltender: 1,
}

// RosterSlot is one position billet on a team
type RosterSlot struct {
	Position Position `json:"position"`
	PlayerID *string  `json:"playerId"`
}

// Team represents a participant's fantasy roster
type Team struct {
	TeamID      uuid.UUID    `json:"teamId"`
	OwnerID     string       `json:"ownerId"`
	Name        string       `json:"name"`
	Logo        string       `json:"logo"`
	Players     []string     `json:"players"`
	SalaryTotal int64        `json:"salaryTotal"`
	Week        int          `json:"week"`
	Slots       []RosterSlot `json:"slots,omitempty"` // nil for legacy teams
}

// NewTeam builds an empty team with the standard slot layout
func NewTeam(ownerID, name, logo string, week int) *Team {
	slots := make([]RosterSlot, len(SlotLayout))
	for i, pos := range SlotLayout {
		slots[i] = RosterSlot{Position: pos}
	}
	return &Team{
		TeamID:  uuid.New(),
		OwnerID: ownerID,
		Name:    name,
		Logo:    logo,
		Players: []string{},
		Week:    week,
		Slots:   slots,
	}
}

// Clone returns a deep copy of the team
func (t *Team) Clone() *Team {
	c := *t
	c.Players = append([]string{}, t.Players...)
	if t.Slots != nil {
		c.Slots = make([]RosterSlot, len(t.Slots))
		for i, s := range t.Slots {
			c.Slots[i] = RosterSlot{Position: s.Position}
			if s.PlayerID != nil {
				id := *s.PlayerID
				c.Slots[i].PlayerID = &id
			}
		}
	}
	return &c
}

// Reset empties the roster, keeping identity and slot layout
func (t *Team) Reset() {
	t.Players = []string{}
	t.SalaryTotal = 0
	for i := range t.Slots {
		t.Slots[i].PlayerID = nil
	}
}
