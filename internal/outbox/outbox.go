package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a domain fact written in the same transaction as the state change
// it describes and published later by the Relay.
type Event struct {
	Seq       int64           `json:"seq"`
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	SentAt    *time.Time      `json:"sentAt,omitempty"`
}

func NewEvent(eventType, key string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Key:       key,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Store is what the relay needs from persistence.
type Store interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkSent(ctx context.Context, seq int64) error
}

// Publisher delivers one event downstream.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
