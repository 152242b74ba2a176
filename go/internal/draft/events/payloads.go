// Package events names the realtime messages sent to clients and the domain
// events published through the outbox, with their payload shapes.
package events

import (
	"time"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

// Realtime message types pushed to websocket clients.
const (
	DraftState         = "draft:state"
	DraftTimer         = "draft:timer"
	DraftAutoPick      = "draft:autopick"
	DraftSkipped       = "draft:skipped"
	DraftCompleted     = "draft:completed"
	DraftError         = "draft:error"
	DraftPresence      = "draft:presence"
	DraftReconnectWait = "draft:reconnect_wait"
	DraftStarting      = "draft:starting"
	DraftYourPosition  = "draft:yourPosition"
	PlayerReconnected  = "player:reconnected"

	LobbyParticipants = "lobby:participants"
	LobbyReady        = "lobby:ready"
	LobbyKicked       = "lobby:kicked"
	LobbyStart        = "lobby:start"
	LobbyError        = "lobby:error"
	LobbyRoomAssigned = "lobby:roomAssigned"

	Connected = "connected"
	Pong      = "pong"
)

// Domain event types published on draft.events.<type>.
const (
	TypeDraftStarted   = "draft_started"
	TypeDraftPaused    = "draft_paused"
	TypeDraftResumed   = "draft_resumed"
	TypeDraftCompleted = "draft_completed"
	TypePickMade       = "pick_made"
	TypePickSkipped    = "pick_skipped"
)

// LobbyTopic is the broadcast topic for a room's lobby.
func LobbyTopic(roomID string) string {
	return "lobby:" + roomID
}

// TimerPayload is sent every tick for each running room.
type TimerPayload struct {
	RoomID           string `json:"roomId"`
	TimerRemainingMs int64  `json:"timerRemainingMs"`
	PickIndex        int    `json:"pickIndex"`
	ActiveUserID     string `json:"activeUserId,omitempty"`
}

// AutoPickPayload describes a pick the server made for a user.
type AutoPickPayload struct {
	RoomID    string           `json:"roomId"`
	PickIndex int              `json:"pickIndex"`
	Pick      models.DraftPick `json:"pick"`
	Reason    string           `json:"reason,omitempty"`
}

// SkippedPayload describes a forfeited turn.
type SkippedPayload struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	PickIndex int    `json:"pickIndex"`
	Reason    string `json:"reason"`
}

// CompletedPayload carries the final state once every round is drafted.
type CompletedPayload struct {
	RoomID     string `json:"roomId"`
	FinalState any    `json:"finalState"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type PresencePayload struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
	Count  int      `json:"count"`
}

type ReconnectWaitPayload struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	GraceMs int64  `json:"graceMs"`
}

type ReconnectedPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type StartingPayload struct {
	Countdown int      `json:"countdown"`
	PickOrder []string `json:"pickOrder"`
}

type YourPositionPayload struct {
	Position int `json:"position"`
	Total    int `json:"total"`
}

type LobbyReadyPayload struct {
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

type LobbyKickedPayload struct {
	RoomID string `json:"roomId"`
}

type LobbyStartPayload struct {
	RoomID    string   `json:"roomId"`
	PickOrder []string `json:"pickOrder"`
}

type RoomAssignedPayload struct {
	RoomID string `json:"roomId"`
}

// DraftStartedPayload is the payload for a draft_started event
type DraftStartedPayload struct {
	RoomID      string    `json:"roomId"`
	PickOrder   []string  `json:"pickOrder"`
	TimerSec    float64   `json:"timerSec"`
	SnakeDraft  bool      `json:"snakeDraft"`
	StartedAt   time.Time `json:"startedAt"`
	TotalRounds int       `json:"totalRounds"`
	TotalPicks  int       `json:"totalPicks"`
}

// PickMadePayload is the payload for a pick_made event
type PickMadePayload struct {
	RoomID     string    `json:"roomId"`
	PickIndex  int       `json:"pickIndex"`
	Round      int       `json:"round"`
	Slot       int       `json:"slot"`
	UserID     string    `json:"userId"`
	TeamName   string    `json:"teamName,omitempty"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName,omitempty"`
	CapHit     int64     `json:"capHit"`
	AutoPick   bool      `json:"autopick"`
	MadeAt     time.Time `json:"madeAt"`
}

// PickSkippedPayload is the payload for a pick_skipped event
type PickSkippedPayload struct {
	RoomID    string    `json:"roomId"`
	PickIndex int       `json:"pickIndex"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	SkippedAt time.Time `json:"skippedAt"`
}

// DraftPausedPayload is the payload for a draft_paused event
type DraftPausedPayload struct {
	RoomID   string    `json:"roomId"`
	PausedAt time.Time `json:"pausedAt"`
	Reason   string    `json:"reason"`
}

// DraftResumedPayload is the payload for a draft_resumed event
type DraftResumedPayload struct {
	RoomID    string    `json:"roomId"`
	ResumedAt time.Time `json:"resumedAt"`
}

// DraftCompletedPayload is the payload for a draft_completed event
type DraftCompletedPayload struct {
	RoomID      string    `json:"roomId"`
	CompletedAt time.Time `json:"completedAt"`
	TotalPicks  int       `json:"totalPicks"`
	Skipped     int       `json:"skipped"`
}
