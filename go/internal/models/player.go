package models

// Position is a hockey roster position
type Position string

const (
	PositionCenter     Position = "C"
	PositionLeftWing   Position = "LW"
	PositionRightWing  Position = "RW"
	PositionDefense    Position = "D"
	PositionGoaltender Position = "G"
)

// Positions lists every valid position
var Positions = []Position{PositionCenter, PositionLeftWing, PositionRightWing, PositionDefense, PositionGoaltender}

// Valid reports whether p is a known position
func (p Position) Valid() bool {
	for _, known := range Positions {
		if p == known {
			return true
		}
	}
	return false
}

// PlayerStats holds last-season production used for auto-pick ranking
type PlayerStats struct {
	Games   int `json:"games"`
	Goals   int `json:"goals"`
	Assists int `json:"assists"`
	Points  int `json:"points"`
}

// Player represents a catalog entry that can be drafted
type Player struct {
	ID                string      `json:"id"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	Position          Position    `json:"position"`
	EligiblePositions []Position  `json:"eligiblePositions,omitempty"` // includes the primary position
	CapHit            int64       `json:"capHit"`
	Team              string      `json:"team"`
	Stats             PlayerStats `json:"stats"`
	DraftedBy         *string     `json:"draftedBy"`
	DraftWeek         *int        `json:"draftWeek"`
}

// FullName returns "First Last"
func (p *Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// IsDrafted reports whether the player already belongs to a team
func (p *Player) IsDrafted() bool {
	return p.DraftedBy != nil
}

// Clone returns a deep copy safe to hand out of a locked store
func (p *Player) Clone() *Player {
	c := *p
	if p.EligiblePositions != nil {
		c.EligiblePositions = append([]Position(nil), p.EligiblePositions...)
	}
	if p.DraftedBy != nil {
		v := *p.DraftedBy
		c.DraftedBy = &v
	}
	if p.DraftWeek != nil {
		v := *p.DraftWeek
		c.DraftWeek = &v
	}
	return &c
}
