// Package events carries the kiosk's structured event log. Producers fire
// and forget; a lost event is logged, never fatal.
package events

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Event is one structured kiosk event.
type Event struct {
	ID        snowflake.ID   `json:"id"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives dispatched events. Write failures are logged by the
// dispatcher and never propagate to producers.
type Sink interface {
	Name() string
	Write(ctx context.Context, event Event) error
}

// New builds an event stamped with a snowflake ID and the current time.
func New(eventType string, payload map[string]any) Event {
	now := time.Now()
	return Event{
		ID:        snowflake.New(now),
		Type:      eventType,
		Payload:   payload,
		Timestamp: now,
	}
}
