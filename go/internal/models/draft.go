package models

import "strings"

// DraftStatus defines the status of a draft room.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// BotUserPrefix marks synthesized bot participants
const BotUserPrefix = "bot-"

// IsBot reports whether userID belongs to a lobby bot
func IsBot(userID string) bool {
	return strings.HasPrefix(userID, BotUserPrefix)
}
