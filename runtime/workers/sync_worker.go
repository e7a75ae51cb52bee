package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitboard/domain"
	"gitboard/domain/event"
	apperrors "gitboard/errors"
	"gitboard/remote"
	"gitboard/repositories"
)

// SyncWorker is the single writer towards the remote history. It drains the
// outbox on a ticker, one batch at a time, so concurrent commits to the same
// branch can never happen.
//
// Failure handling:
//   - transient push error: attempt is recorded, entry retried next tick
//   - attempts exhausted: entry moves to the dead set, SyncFailed emitted
//   - auth error: reported for the operator, worker terminates cleanly so
//     the supervisor does not retry a hopeless token forever
type SyncWorker struct {
	outbox      repositories.IOutboxRepository
	cache       repositories.IMessageRepository
	history     remote.IRemoteHistory
	events      chan<- event.Event
	log         *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewSyncWorker(
	outbox repositories.IOutboxRepository,
	cache repositories.IMessageRepository,
	history remote.IRemoteHistory,
	events chan<- event.Event,
	log *slog.Logger,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
) *SyncWorker {
	return &SyncWorker{
		outbox:      outbox,
		cache:       cache,
		history:     history,
		events:      events,
		log:         log,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

func (w *SyncWorker) Run(ctx context.Context) error {
	w.log.Info("Starting sync worker", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				if errors.Is(err, apperrors.ErrAuthFailed) {
					w.log.Error("Remote rejected our credentials, suspending sync until restart", "error", err)
					return nil
				}
				return err
			}
		}
	}
}

// drain pushes one batch. Per-entry errors are absorbed into retry state;
// only infrastructure errors (outbox unreadable) bubble up to the supervisor.
func (w *SyncWorker) drain(ctx context.Context) error {
	entries, err := w.outbox.NextBatch(w.batchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.push(ctx, entry); err != nil {
			if errors.Is(err, apperrors.ErrAuthFailed) {
				return err
			}
			w.log.Warn("Sync attempt failed", "id", entry.ID, "attempt", entry.Attempts+1, "error", err)
			if err := w.retryOrBury(ctx, entry, err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *SyncWorker) push(ctx context.Context, entry repositories.OutboxEntry) error {
	message := domain.Message{
		ID:        entry.ID,
		Author:    entry.Author,
		Content:   entry.Content,
		Lang:      entry.Lang,
		CreatedAt: entry.CreatedAt,
	}

	commitSHA, err := w.history.PushMessage(ctx, message)
	if err != nil {
		return err
	}

	if err := w.outbox.MarkSynced(entry); err != nil {
		return err
	}
	if err := w.cache.MarkSynced(ctx, entry.ID, commitSHA); err != nil {
		// The remote write went through; a stale cache flag is repairable by
		// rehydration and must not fail the sync.
		w.log.Warn("Cache flag update failed after sync", "id", entry.ID, "error", err)
	}

	w.emit(event.Event{
		Type:      event.MessageSyncedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.MessageSynced{
			ID:        entry.ID,
			CommitSHA: commitSHA,
			Attempts:  entry.Attempts + 1,
		},
	})
	return nil
}

func (w *SyncWorker) retryOrBury(ctx context.Context, entry repositories.OutboxEntry, cause error) error {
	if entry.Attempts+1 < w.maxAttempts {
		return w.outbox.RecordAttempt(entry, cause)
	}

	entry.Attempts++
	entry.LastError = fmt.Errorf("%w: %s", apperrors.ErrSyncExhausted, cause).Error()
	if err := w.outbox.MarkDead(entry); err != nil {
		return err
	}
	if err := w.cache.MarkFailed(ctx, entry.ID); err != nil {
		w.log.Warn("Cache flag update failed for dead entry", "id", entry.ID, "error", err)
	}
	w.emit(event.Event{
		Type:      event.SyncFailedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.SyncFailed{
			ID:       entry.ID,
			Attempts: entry.Attempts,
			Reason:   cause.Error(),
		},
	})
	return nil
}

func (w *SyncWorker) emit(e event.Event) {
	select {
	case w.events <- e:
	default:
		w.log.Warn("Event buffer full, dropping event", "type", e.Type)
	}
}
