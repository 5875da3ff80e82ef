// Package pubsub provides a generic publish/subscribe event system used to
// fan out log entries and run lifecycle events.
package pubsub

import (
	"context"
	"time"
)

// EventType names the kind of event being published. Packages that publish
// on a broker declare their own EventType constants.
type EventType string

// EntryEvent is published for each log entry.
const EntryEvent EventType = "entry"

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}

// Next blocks until the next event arrives on ch.
// Returns false if ctx is cancelled or the channel is closed.
func Next[T any](ctx context.Context, ch <-chan Event[T]) (Event[T], bool) {
	select {
	case <-ctx.Done():
		return Event[T]{}, false
	case event, ok := <-ch:
		return event, ok
	}
}
