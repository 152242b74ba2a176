// Package outbox persists draft records and publishes domain events after the
// in-memory state has already changed. Delivery is at least once; callers
// never block on storage or the message bus.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

// Event is a domain event bound for the message bus.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	RoomID    string          `json:"roomId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent marshals payload into an event with a fresh id.
func NewEvent(roomID, eventType string, payload any, at time.Time) (*Event, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New(),
		RoomID:    roomID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// Entry is one unit of outbox work: a record to save, an event to publish, or both.
type Entry struct {
	Room  *persistence.RoomRecord
	Pick  *persistence.PickRecord
	Event *Event
}

func (e Entry) kind() string {
	switch {
	case e.Room != nil:
		return "room"
	case e.Pick != nil:
		return "pick"
	default:
		return "event"
	}
}

// EventPublisher delivers events to subscribers outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
