package event

import (
	"log/slog"

	"gitboard/errors"
)

// SyncHandler tracks the outcome of remote sync attempts. A SyncFailed event
// means the message stays local only, which an operator should notice.
type SyncHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewSyncHandler(log *slog.Logger, counter *Counter) *SyncHandler {
	return &SyncHandler{log: log, counter: counter}
}

func (h *SyncHandler) Handle(event Event) {
	switch event.Type {
	case MessageSyncedType:
		payload, ok := event.Payload.(MessageSynced)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(MessageSyncedType)
		h.log.Debug("Message reached the remote history",
			"id", payload.ID, "commit", payload.CommitSHA, "attempts", payload.Attempts)
	case SyncFailedType:
		payload, ok := event.Payload.(SyncFailed)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(SyncFailedType)
		h.log.Error("Message abandoned after exhausting sync attempts",
			"id", payload.ID, "attempts", payload.Attempts, "reason", payload.Reason)
	}
}
