package workers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gitboard/domain"
	"gitboard/domain/event"
	apperrors "gitboard/errors"
	"gitboard/repositories"
)

// scriptedRemote fails the first failures pushes, then succeeds. failWith
// overrides the transient error, e.g. with an auth failure.
type scriptedRemote struct {
	mu       sync.Mutex
	failures int
	failWith error
	pushed   []domain.Message
}

func (r *scriptedRemote) PushMessage(_ context.Context, message domain.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		if r.failWith != nil {
			return "", r.failWith
		}
		return "", fmt.Errorf("remote returned 502")
	}
	r.pushed = append(r.pushed, message)
	return fmt.Sprintf("sha-%d", len(r.pushed)), nil
}

func (r *scriptedRemote) ListMessages(context.Context) ([]domain.Message, error) {
	return nil, nil
}

func (r *scriptedRemote) pushedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushed)
}

type syncFixture struct {
	cache  *repositories.MessageRepository
	outbox *repositories.OutboxRepository
	events chan event.Event
}

func newSyncFixture(t *testing.T) syncFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	cache, err := repositories.OpenMessageRepository(filepath.Join(t.TempDir(), "cache.db"), log)
	req.NoError(err)
	t.Cleanup(func() { _ = cache.Close() })

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	return syncFixture{
		cache:  cache,
		outbox: repositories.NewOutboxRepository(db, log),
		events: make(chan event.Event, 32),
	}
}

func (f syncFixture) enqueue(t *testing.T, content string) domain.Message {
	t.Helper()
	req := require.New(t)
	message := domain.Message{
		ID:        uuid.New(),
		Author:    "Alice",
		Content:   content,
		Lang:      "en",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		SyncState: domain.SyncPending,
	}
	req.NoError(f.cache.Store(context.Background(), message))
	req.NoError(f.outbox.Enqueue(repositories.FromMessage(message)))
	return message
}

func (f syncFixture) worker(remote *scriptedRemote, maxAttempts int) *SyncWorker {
	return NewSyncWorker(f.outbox, f.cache, remote, f.events, slog.Default(), 5*time.Millisecond, 10, maxAttempts)
}

func runWorker(t *testing.T, worker *SyncWorker) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
			return nil
		}
	}
}

func Test_SyncWorker_Drains_Outbox(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	remote := &scriptedRemote{}

	first := f.enqueue(t, "first")
	second := f.enqueue(t, "second")

	stop := runWorker(t, f.worker(remote, 5))

	req.Eventually(func() bool {
		count, err := f.outbox.PendingCount()
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)
	req.ErrorIs(stop(), context.Canceled)

	req.Equal(2, remote.pushedCount())
	req.Equal(first.Content, remote.pushed[0].Content)

	for _, message := range []domain.Message{first, second} {
		cached, err := f.cache.Get(context.Background(), message.ID)
		req.NoError(err)
		req.Equal(domain.SyncDone, cached.SyncState)
		req.NotEmpty(cached.CommitSHA)
	}

	e := <-f.events
	req.Equal(event.MessageSyncedType, e.Type)
	synced, ok := e.Payload.(event.MessageSynced)
	req.True(ok)
	req.Equal(first.ID, synced.ID)
}

func Test_SyncWorker_Retries_Transient_Failures(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	remote := &scriptedRemote{failures: 3}

	message := f.enqueue(t, "eventually consistent")

	stop := runWorker(t, f.worker(remote, 10))

	req.Eventually(func() bool {
		count, err := f.outbox.PendingCount()
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)
	req.ErrorIs(stop(), context.Canceled)

	req.Equal(1, remote.pushedCount())
	cached, err := f.cache.Get(context.Background(), message.ID)
	req.NoError(err)
	req.Equal(domain.SyncDone, cached.SyncState)
}

func Test_SyncWorker_Buries_Entry_After_Exhausted_Attempts(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	remote := &scriptedRemote{failures: 1000}

	message := f.enqueue(t, "doomed")

	stop := runWorker(t, f.worker(remote, 3))

	req.Eventually(func() bool {
		dead, err := f.outbox.DeadEntries()
		return err == nil && len(dead) == 1
	}, 2*time.Second, 10*time.Millisecond)
	req.ErrorIs(stop(), context.Canceled)

	count, err := f.outbox.PendingCount()
	req.NoError(err)
	req.Zero(count)

	dead, err := f.outbox.DeadEntries()
	req.NoError(err)
	req.Equal(3, dead[0].Attempts)
	req.Contains(dead[0].LastError, "502")

	cached, err := f.cache.Get(context.Background(), message.ID)
	req.NoError(err)
	req.Equal(domain.SyncFailed, cached.SyncState)

	var sawFailure bool
	for len(f.events) > 0 {
		if e := <-f.events; e.Type == event.SyncFailedType {
			sawFailure = true
		}
	}
	req.True(sawFailure)
}

func Test_SyncWorker_Stops_Cleanly_On_Auth_Failure(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	remote := &scriptedRemote{failures: 1000, failWith: apperrors.ErrAuthFailed}

	f.enqueue(t, "never leaves")

	worker := f.worker(remote, 5)
	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	// A nil return tells the supervisor not to restart a hopeless token.
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept retrying with rejected credentials")
	}

	// The entry stays pending until the operator fixes the token.
	count, err := f.outbox.PendingCount()
	req.NoError(err)
	req.Equal(1, count)
}
