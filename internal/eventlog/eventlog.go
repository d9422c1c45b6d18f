// Package eventlog records ledger activity (publishes, claims, releases)
// asynchronously for audit and debugging. Events are best-effort: a full
// buffer drops the event rather than slowing down claim traffic.
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded ledger action.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"event_type"`
	Data      any       `json:"event_data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventOption configures a new event.
type EventOption func(*Event)

// WithType sets the event type, e.g. "bill.published" or "item.claimed".
func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

// WithData attaches a JSON-serializable payload.
func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Logger persists events. Both storage backends implement it against their
// own events table.
type Logger interface {
	SaveEvent(ctx context.Context, e Event) error
	EventsByType(ctx context.Context, eventType string) ([]Event, error)
}
