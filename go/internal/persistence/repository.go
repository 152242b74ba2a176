// Package persistence stores the durable subset of draft state: each room's
// configuration and its pick log. In-memory rooms are always rebuildable
// from these records.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRoomNotFound is returned by GetRoom for unknown ids.
var ErrRoomNotFound = errors.New("draft room record not found")

// RoomRecord is a room's configuration as it was started.
type RoomRecord struct {
	RoomID     string    `json:"roomId" bson:"room_id"`
	TimerSec   float64   `json:"timerSec" bson:"timer_sec"`
	SnakeDraft bool      `json:"snakeDraft" bson:"snake_draft"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	PickOrder  []string  `json:"pickOrder" bson:"pick_order"`
}

// PickRecord is one entry of a room's pick log. Skipped turns carry no player.
type PickRecord struct {
	RoomID    string    `json:"roomId" bson:"room_id"`
	PickIndex int       `json:"pickIndex" bson:"pick_index"`
	Round     int       `json:"round" bson:"round"`
	Slot      int       `json:"slot" bson:"slot"`
	UserID    string    `json:"userId" bson:"user_id"`
	PlayerID  string    `json:"playerId" bson:"player_id"`
	Autopick  bool      `json:"autopick" bson:"autopick"`
	Skipped   bool      `json:"skipped" bson:"skipped"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Repository is the append-only store behind the draft outbox.
type Repository interface {
	// SaveRoom upserts by room id.
	SaveRoom(ctx context.Context, room RoomRecord) error
	// SavePick upserts by (room id, pick index), so replays are idempotent.
	SavePick(ctx context.Context, pick PickRecord) error
	GetRoom(ctx context.Context, roomID string) (RoomRecord, error)
	ListRooms(ctx context.Context) ([]RoomRecord, error)
	// ListPicks returns a room's picks in ascending pick index.
	ListPicks(ctx context.Context, roomID string) ([]PickRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
	MongoURI    string
	MongoDB     string
}

// Open builds the repository named by opts.Driver.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryRepository(), nil
	case DriverSQLite:
		return NewSQLiteRepository(opts.SQLitePath)
	case DriverPostgres:
		return NewPostgresRepository(ctx, opts.PostgresDSN)
	case DriverMongo:
		return NewMongoRepository(ctx, opts.MongoURI, opts.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
