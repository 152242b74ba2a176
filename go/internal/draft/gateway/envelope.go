package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the outbound frame: every message a client receives has this shape.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Inbound is a frame sent by a client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps data for eventType. A nil data sends no payload.
func NewEnvelope(eventType string, data any, at time.Time) (*Envelope, error) {
	env := &Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		env.Data = raw
	}
	return env, nil
}

// decode unmarshals an inbound payload into v. An empty payload leaves v zero.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
