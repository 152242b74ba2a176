package models

import (
	"time"
)

// DraftPick is an immutable record of one completed turn.
// A skipped turn has Skipped set and an empty PlayerID.
type DraftPick struct {
	RoomID    string    `json:"roomId"`
	PickIndex int       `json:"pickIndex"` // 0-based, global across rounds
	Round     int       `json:"round"`     // 1-based
	Slot      int       `json:"slot"`      // 0-based position in the round
	UserID    string    `json:"userId"`
	PlayerID  string    `json:"playerId,omitempty"`
	AutoPick  bool      `json:"autopick"`
	Skipped   bool      `json:"skipped,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
