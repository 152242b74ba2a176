package rpc

import (
	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type StartDraftRequest struct {
	RoomID     string   `json:"roomId"`
	PickOrder  []string `json:"pickOrder"`
	TimerSec   float64  `json:"timerSec"`
	SnakeDraft *bool    `json:"snakeDraft,omitempty"`
}

type StartDraftResponse struct {
	DraftState draft.State `json:"draftState"`
}

type GetDraftStateRequest struct {
	RoomID string `json:"roomId"`
}

type GetDraftStateResponse struct {
	DraftState draft.State `json:"draftState"`
}

type MakePickRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type MakePickResponse struct {
	DraftState draft.State  `json:"draftState"`
	Team       *models.Team `json:"team"`
}

type PauseDraftRequest struct {
	RoomID string `json:"roomId"`
}

type PauseDraftResponse struct {
	DraftState draft.State `json:"draftState"`
}

type ResumeDraftRequest struct {
	RoomID string `json:"roomId"`
}

type ResumeDraftResponse struct {
	DraftState draft.State `json:"draftState"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []persistence.RoomRecord `json:"rooms"`
}

type GetHistoryRequest struct {
	RoomID string `json:"roomId"`
}

type GetHistoryResponse struct {
	RoomID string                   `json:"roomId"`
	Picks  []persistence.PickRecord `json:"picks"`
}
