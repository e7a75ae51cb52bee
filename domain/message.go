// Package domain contains core concepts of the message board.
// This file defines Message and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncState tracks how far a message has travelled towards the remote history.
type SyncState string

const (
	// SyncPending means the message is durable locally but not yet committed remotely.
	SyncPending SyncState = "pending"
	// SyncDone means a commit holding the message exists in the remote history.
	SyncDone SyncState = "synced"
	// SyncFailed means all sync attempts were exhausted; the message stays local only.
	SyncFailed SyncState = "failed"
)

// Message represents an immutable board entry.
// The local cache row is a disposable projection of it; the remote
// version-controlled history is the authoritative record.
type Message struct {
	ID        uuid.UUID // unique identifier
	Author    string
	Content   string
	Lang      string // ISO 639-1 code detected at submission, may be empty
	CreatedAt time.Time
	SyncState SyncState
	CommitSHA string // blob SHA of the remote file once synced
}
