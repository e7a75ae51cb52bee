package event

import (
	"log/slog"

	"gitboard/errors"
)

type WorkerRestartedAfterPanicHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewWorkerRestartedAfterPanicHandler(log *slog.Logger, counter *Counter) *WorkerRestartedAfterPanicHandler {
	return &WorkerRestartedAfterPanicHandler{log: log, counter: counter}
}

func (h *WorkerRestartedAfterPanicHandler) Handle(event Event) {
	switch event.Type {
	case RestartedAfterPanicType:
		payload, ok := event.Payload.(WorkerRestartedAfterPanic)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(RestartedAfterPanicType)
		h.log.Warn("Worker restarted after panic", "name", payload.WorkerName)
	}
}
