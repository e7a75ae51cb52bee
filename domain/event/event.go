package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MessagePostedType       Type = "MESSAGE_POSTED"
	MessageSyncedType       Type = "MESSAGE_SYNCED"
	SyncFailedType          Type = "SYNC_FAILED"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
)

// Event is the envelope travelling on the in-process event channel.
// Payload holds one of the structs below, matching Type.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

// MessagePosted is emitted once a submission is durable in the local cache
// and queued in the outbox.
type MessagePosted struct {
	ID      uuid.UUID
	Author  string
	Content string
	Lang    string
	At      time.Time
}

// MessageSynced is emitted when the remote history holds a commit for the message.
type MessageSynced struct {
	ID        uuid.UUID
	CommitSHA string
	Attempts  int
}

// SyncFailed is emitted when a message exhausted its sync attempts and was
// moved to the dead set.
type SyncFailed struct {
	ID       uuid.UUID
	Attempts int
	Reason   string
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}
