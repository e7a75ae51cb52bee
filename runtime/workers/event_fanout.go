package workers

import (
	"context"
	"log/slog"

	"gitboard/domain/event"
)

// EventFanout dispatches domain events to registered handlers, one after the
// other, chain-of-responsibility style.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// It is intended for observability and side effects (search indexing, logs,
// metrics), not for core domain logic.
type EventFanout struct {
	log      *slog.Logger
	events   <-chan event.Event
	handlers []event.Handler
}

func NewEventFanout(log *slog.Logger, events <-chan event.Event) *EventFanout {
	return &EventFanout{log: log, events: events}
}

func (w *EventFanout) Add(handlers ...event.Handler) *EventFanout {
	w.handlers = append(w.handlers, handlers...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			for _, handler := range w.handlers {
				handler.Handle(e)
			}
		}
	}
}
