// Package roster holds the pure cap and slot rules applied to a team before a
// player may be added to it.
package roster

import (
	"errors"
	"fmt"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

// ErrNoEmptySlot is returned by AssignPlayerToSlot when every billet of the
// requested position is taken.
var ErrNoEmptySlot = errors.New("no empty slot for position")

// CanAffordPlayer reports whether adding player keeps the team under the cap.
func CanAffordPlayer(team *models.Team, player *models.Player) bool {
	return team.SalaryTotal+player.CapHit <= models.SalaryCap
}

// RemainingCap returns the unspent part of the team budget.
func RemainingCap(team *models.Team) int64 {
	return models.SalaryCap - team.SalaryTotal
}

// IsTeamFull reports whether the roster already holds MaxPlayersPerTeam players.
func IsTeamFull(team *models.Team) bool {
	return len(team.Players) >= models.MaxPlayersPerTeam
}

// EligiblePositions returns the player's explicit list, or just the primary position.
func EligiblePositions(player *models.Player) []models.Position {
	if len(player.EligiblePositions) > 0 {
		return player.EligiblePositions
	}
	return []models.Position{player.Position}
}

// PositionCounts counts occupied billets per position. Explicit slots win;
// legacy teams are counted from their players' primary positions.
func PositionCounts(team *models.Team, players map[string]*models.Player) map[models.Position]int {
	counts := make(map[models.Position]int, len(models.Positions))
	if team.Slots != nil {
		for _, s := range team.Slots {
			if s.PlayerID != nil {
				counts[s.Position]++
			}
		}
		return counts
	}
	for _, id := range team.Players {
		if p, ok := players[id]; ok {
			counts[p.Position]++
		}
	}
	return counts
}

// HasSlotAvailable reports whether the team can still take a player at position.
func HasSlotAvailable(team *models.Team, players map[string]*models.Player, position models.Position) bool {
	if team.Slots != nil {
		for _, s := range team.Slots {
			if s.Position == position && s.PlayerID == nil {
				return true
			}
		}
		return false
	}
	return PositionCounts(team, players)[position] < models.RosterLimits[position]
}

// FindAssignablePosition returns the first of the player's eligible positions
// that still has room on the team.
func FindAssignablePosition(team *models.Team, players map[string]*models.Player, player *models.Player) (models.Position, bool) {
	eligible := EligiblePositions(player)

	if team.Slots != nil {
		for _, pos := range eligible {
			for _, s := range team.Slots {
				if s.Position == pos && s.PlayerID == nil {
					return pos, true
				}
			}
		}
	}

	counts := PositionCounts(team, players)
	for _, pos := range eligible {
		if counts[pos] < models.RosterLimits[pos] {
			return pos, true
		}
	}
	return "", false
}

// AssignPlayerToSlot fills the first empty billet of position. Legacy teams
// without slots are left untouched.
func AssignPlayerToSlot(team *models.Team, position models.Position, playerID string) error {
	if team.Slots == nil {
		return nil
	}
	for i := range team.Slots {
		if team.Slots[i].Position == position && team.Slots[i].PlayerID == nil {
			id := playerID
			team.Slots[i].PlayerID = &id
			return nil
		}
	}
	return fmt.Errorf("%w %s", ErrNoEmptySlot, position)
}
