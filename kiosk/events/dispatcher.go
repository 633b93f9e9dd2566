package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Dispatcher fans events out to its sinks from a single worker goroutine,
// decoupled from request handling by a bounded queue. When the queue is full
// the event is dropped with a warning; producers never block.
type Dispatcher struct {
	sinks []Sink
	queue chan Event
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks: sinks,
		queue: make(chan Event, defaultQueueSize),
	}
}

// Emit queues one event. Safe for concurrent use; never blocks.
func (d *Dispatcher) Emit(eventType string, payload map[string]any) {
	event := New(eventType, payload)
	select {
	case d.queue <- event:
	default:
		slog.Warn("Event queue full, dropping event",
			slog.String("event_type", eventType))
	}
}

// Run drains the queue until ctx is canceled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.write(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-d.queue:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for _, sink := range d.sinks {
		if err := sink.Write(ctx, event); err != nil {
			slog.Warn("Event sink write failed",
				slog.String("sink", sink.Name()),
				slog.String("event_type", event.Type),
				slog.Any("error", err))
		}
	}
}
