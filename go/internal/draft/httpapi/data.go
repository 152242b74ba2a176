package httpapi

import (
	"net/http"
	"slices"
	"sort"
	"strconv"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/roster"
)

// teamView is a team with its roster expanded to full player records.
type teamView struct {
	*models.Team
	Picks []*models.Player `json:"picks"`
}

// PlayerSummary is one roster line on the leaderboard.
type PlayerSummary struct {
	PlayerID string          `json:"playerId"`
	Name     string          `json:"name"`
	Position models.Position `json:"position"`
	CapHit   int64           `json:"capHit"`
}

// LeaderboardEntry ranks one team by payroll.
type LeaderboardEntry struct {
	TeamID      string          `json:"teamId"`
	Owner       string          `json:"owner"`
	TeamName    string          `json:"teamName"`
	Logo        string          `json:"logo"`
	SalaryTotal int64           `json:"salaryTotal"`
	Players     []PlayerSummary `json:"players"`
}

// Team returns a user's team with full player records. userId defaults to the caller.
func (a *API) Team(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID, _ = auth.UserID(r.Context())
	}
	team, ok := a.svc.Store().Team(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "Team not found")
		return
	}
	picks := a.rosterPlayers(team)
	writeJSON(w, http.StatusOK, map[string]any{
		"team":    teamView{Team: team, Picks: picks},
		"players": picks,
	})
}

// Players lists the catalog filtered by drafted, position and team. A
// position matches a player's primary or any eligible position.
func (a *API) Players(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	players := a.svc.Store().Players()
	out := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if q.Has("drafted") && p.IsDrafted() != (q.Get("drafted") == "true") {
			continue
		}
		if pos := models.Position(q.Get("position")); pos != "" && p.Position != pos && !slices.Contains(roster.EligiblePositions(p), pos) {
			continue
		}
		if team := q.Get("team"); team != "" && p.Team != team {
			continue
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"players": out,
		"total":   len(out),
	})
}

// Leaderboard ranks a week's teams by salary total, highest first.
func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	week := 1
	if raw := r.URL.Query().Get("week"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "week must be a positive integer")
			return
		}
		week = n
	}

	store := a.svc.Store()
	board := []LeaderboardEntry{}
	for _, team := range store.Teams() {
		if team.Week != week {
			continue
		}
		owner := "Unknown"
		if u, err := store.User(team.OwnerID); err == nil {
			owner = u.Login
		}
		entry := LeaderboardEntry{
			TeamID:      team.TeamID.String(),
			Owner:       owner,
			TeamName:    team.Name,
			Logo:        team.Logo,
			SalaryTotal: team.SalaryTotal,
			Players:     []PlayerSummary{},
		}
		for _, p := range a.rosterPlayers(team) {
			entry.Players = append(entry.Players, PlayerSummary{
				PlayerID: p.ID,
				Name:     p.FullName(),
				Position: p.Position,
				CapHit:   p.CapHit,
			})
		}
		board = append(board, entry)
	}
	sort.SliceStable(board, func(i, j int) bool { return board[i].SalaryTotal > board[j].SalaryTotal })

	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": board,
		"week":        week,
	})
}

func (a *API) rosterPlayers(team *models.Team) []*models.Player {
	out := make([]*models.Player, 0, len(team.Players))
	for _, id := range team.Players {
		if p, err := a.svc.Store().Player(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}
