//go:generate go run go.uber.org/mock/mockgen -source=outbox.go -destination=../mocks/mock_outbox_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"gitboard/domain"
)

// OutboxEntry is a unit of sync work: a snapshot of the message waiting for
// its commit in the remote history. It is stored in BadgerDB so pending
// work survives restarts.
type OutboxEntry struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

type IOutboxRepository interface {
	Enqueue(entry OutboxEntry) error
	NextBatch(limit int) ([]OutboxEntry, error)
	RecordAttempt(entry OutboxEntry, cause error) error
	MarkSynced(entry OutboxEntry) error
	MarkDead(entry OutboxEntry) error
	PendingCount() (int, error)
	DeadEntries() ([]OutboxEntry, error)
}

type OutboxRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewOutboxRepository(db *badger.DB, log *slog.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, log: log}
}

// pendingKey is formatted as "sync:pending:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological draining using 19-digit zero padding (lexicographical order).
//  2. Prevent collisions if two messages arrive at the same nanosecond.
func pendingKey(entry OutboxEntry) []byte {
	return []byte(fmt.Sprintf("sync:pending:%019d:%s", entry.CreatedAt.UnixNano(), entry.ID))
}

func deadKey(entry OutboxEntry) []byte {
	return []byte(fmt.Sprintf("sync:dead:%s", entry.ID))
}

func (o *OutboxRepository) Enqueue(entry OutboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(entry), data)
	})
}

// NextBatch retrieves up to limit pending entries, oldest first.
func (o *OutboxRepository) NextBatch(limit int) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	prefix := []byte("sync:pending:")

	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = limit

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var entry OutboxEntry
				if err := json.Unmarshal(v, &entry); err != nil {
					return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during batch fetch: %w", err)
	}
	return entries, nil
}

// RecordAttempt bumps the attempt counter in place so the retry budget
// survives restarts. The key does not change: the entry stays pending.
func (o *OutboxRepository) RecordAttempt(entry OutboxEntry, cause error) error {
	entry.Attempts++
	if cause != nil {
		entry.LastError = cause.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(entry), data)
	})
}

// MarkSynced removes the entry: the remote history now owns the message.
func (o *OutboxRepository) MarkSynced(entry OutboxEntry) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(entry))
	})
}

// MarkDead moves an entry from pending to the dead set atomically, after its
// retry budget ran out. Dead entries are kept for operator inspection.
func (o *OutboxRepository) MarkDead(entry OutboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead entry: %w", err)
	}
	return o.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(pendingKey(entry))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("entry %s is no longer pending", entry.ID)
		}
		if err := txn.Delete(pendingKey(entry)); err != nil {
			return err
		}
		return txn.Set(deadKey(entry), data)
	})
}

func (o *OutboxRepository) PendingCount() (int, error) {
	count := 0
	prefix := []byte("sync:pending:")
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (o *OutboxRepository) DeadEntries() ([]OutboxEntry, error) {
	var entries []OutboxEntry
	prefix := []byte("sync:dead:")
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var entry OutboxEntry
				if err := json.Unmarshal(v, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// FromMessage builds the sync snapshot for a freshly submitted message.
func FromMessage(message domain.Message) OutboxEntry {
	return OutboxEntry{
		ID:        message.ID,
		Author:    message.Author,
		Content:   message.Content,
		Lang:      message.Lang,
		CreatedAt: message.CreatedAt,
	}
}
