package event

import (
	"log/slog"

	"gitboard/errors"
)

// MessagePostedHandler handles events fired when a submission became durable.
// Useful for updating observability metrics, logging, or telemetry.
type MessagePostedHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewMessagePostedHandler(log *slog.Logger, counter *Counter) *MessagePostedHandler {
	return &MessagePostedHandler{log: log, counter: counter}
}

func (h *MessagePostedHandler) Handle(event Event) {
	switch event.Type {
	case MessagePostedType:
		if _, ok := event.Payload.(MessagePosted); !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(MessagePostedType)
	}
}
