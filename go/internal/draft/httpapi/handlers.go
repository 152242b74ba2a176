package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type startRequest struct {
	RoomID     string   `json:"roomId"`
	PickOrder  []string `json:"pickOrder"`
	TimerSec   float64  `json:"timerSec"`
	SnakeDraft *bool    `json:"snakeDraft,omitempty"`
}

type pickRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

type positionsRequest struct {
	EligiblePositions []models.Position `json:"eligiblePositions"`
}

func (a *API) StartDraft(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := a.svc.StartDraft(r.Context(), draft.Config{
		RoomID:     req.RoomID,
		PickOrder:  req.PickOrder,
		TimerSec:   req.TimerSec,
		SnakeDraft: req.SnakeDraft,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Draft started",
		"draftState": st,
	})
}

func (a *API) DraftRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := requireRoomID(w, r)
	if !ok {
		return
	}
	st, err := a.svc.State(roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	userID, _ := auth.UserID(r.Context())
	var myTeam *models.Team
	if team, ok := a.svc.Store().Team(userID); ok {
		myTeam = team
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"draftState":       st,
		"availablePlayers": a.svc.Store().AvailablePlayers(),
		"myTeam":           myTeam,
	})
}

func (a *API) DraftState(w http.ResponseWriter, r *http.Request) {
	roomID, ok := requireRoomID(w, r)
	if !ok {
		return
	}
	st, err := a.svc.State(roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draftState": st})
}

func (a *API) MakePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoomID == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "roomId and playerId are required")
		return
	}
	userID, _ := auth.UserID(r.Context())
	st, team, err := a.svc.MakePick(r.Context(), req.RoomID, userID, req.PlayerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Pick made",
		"draftState": st,
		"team":       team,
	})
}

func (a *API) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.svc.Rooms(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (a *API) History(w http.ResponseWriter, r *http.Request) {
	roomID, ok := requireRoomID(w, r)
	if !ok {
		return
	}
	picks, err := a.svc.History(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if picks == nil {
		picks = []persistence.PickRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "picks": picks})
}

func (a *API) Active(w http.ResponseWriter, r *http.Request) {
	st, ok := a.svc.Active()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"hasActiveDraft": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasActiveDraft": true,
		"roomId":         st.RoomID,
		"status":         st.Status(),
		"draftState":     st,
	})
}

func (a *API) Pause(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return
	}
	st, err := a.svc.Pause(r.Context(), req.RoomID, "admin")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Draft paused", "draftState": st})
}

func (a *API) Resume(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return
	}
	st, err := a.svc.Resume(r.Context(), req.RoomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Draft resumed", "draftState": st})
}

func (a *API) AvailablePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"players": a.svc.Store().AvailablePlayers()})
}

func (a *API) Teams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"teams": a.svc.Store().Teams()})
}

func (a *API) SetPositions(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerId")
	var req positionsRequest
	if !decode(w, r, &req) {
		return
	}
	positions, err := a.svc.Store().SetEligiblePositions(playerID, req.EligiblePositions)
	switch {
	case errors.Is(err, catalog.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, catalog.ErrPlayerNotFound.Error())
		return
	case errors.Is(err, catalog.ErrEmptyPositionList), errors.Is(err, catalog.ErrNoValidPositions):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	log.Info().Str("player_id", playerID).Interface("positions", positions).Msg("eligible positions updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"playerId":          playerID,
		"eligiblePositions": positions,
	})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	now := a.clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(a.startedAt).Seconds(),
		"timestamp": now.UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

func Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.readiness == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	a.readiness.ServeHTTP(w, r)
}

func requireRoomID(w http.ResponseWriter, r *http.Request) (string, bool) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return "", false
	}
	return roomID, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps draft errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, draft.PublicMessage(err))
	case errors.Is(err, draft.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case draft.IsValidation(err):
		writeError(w, http.StatusBadRequest, draft.PublicMessage(err))
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
