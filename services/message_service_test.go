package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitboard/domain"
	"gitboard/domain/event"
	apperrors "gitboard/errors"
	"gitboard/mocks"
	"gitboard/moderation"
	"gitboard/repositories"
)

type serviceFixture struct {
	service *MessageService
	cache   *repositories.MessageRepository
	outbox  *repositories.OutboxRepository
	history *mocks.MockIRemoteHistory
	events  chan event.Event
}

func newServiceFixture(t *testing.T, censoredWords []string) serviceFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	cache, err := repositories.OpenMessageRepository(filepath.Join(t.TempDir(), "cache.db"), log)
	req.NoError(err)
	t.Cleanup(func() { _ = cache.Close() })

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	outbox := repositories.NewOutboxRepository(db, log)

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(filepath.Join(t.TempDir(), "index")))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })
	search := repositories.NewSearchRepository(writer, log)

	moderator, err := moderation.NewModerator(censoredWords, '*', log)
	req.NoError(err)

	ctrl := gomock.NewController(t)
	history := mocks.NewMockIRemoteHistory(ctrl)

	events := make(chan event.Event, 16)
	service := NewMessageService(cache, outbox, search, history, &moderator, events, log, 200)

	return serviceFixture{service: service, cache: cache, outbox: outbox, history: history, events: events}
}

func Test_Submit_Writes_Cache_And_Outbox(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	message, err := f.service.Submit(ctx, domain.PostMessageCommand{
		Author:  "Alice",
		Content: "This is a perfectly normal sentence written in English.",
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, message.ID)
	req.Equal(domain.SyncPending, message.SyncState)
	req.Equal("en", message.Lang)

	cached, err := f.cache.Get(ctx, message.ID)
	req.NoError(err)
	req.Equal(message.Content, cached.Content)

	batch, err := f.outbox.NextBatch(10)
	req.NoError(err)
	req.Len(batch, 1)
	req.Equal(message.ID, batch[0].ID)

	e := <-f.events
	req.Equal(event.MessagePostedType, e.Type)
	posted, ok := e.Payload.(event.MessagePosted)
	req.True(ok)
	req.Equal(message.ID, posted.ID)
}

func Test_Submit_Censors_Before_Persisting(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, []string{"badger"})
	ctx := context.Background()

	message, err := f.service.Submit(ctx, domain.PostMessageCommand{
		Author:  "Alice",
		Content: "there is a badger in the outbox",
	})
	req.NoError(err)
	req.Equal("there is a ****** in the outbox", message.Content)

	// The censored form, never the original, must be everywhere.
	cached, err := f.cache.Get(ctx, message.ID)
	req.NoError(err)
	req.NotContains(cached.Content, "badger")

	batch, err := f.outbox.NextBatch(10)
	req.NoError(err)
	req.NotContains(batch[0].Content, "badger")
}

func Test_Submit_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		cmd         domain.PostMessageCommand
		expectedErr error
	}{
		{
			name: "whitespace-only content",
			cmd:  domain.PostMessageCommand{Author: "Alice", Content: "   \n\t  "},
		},
		{
			name:        "content over the limit",
			cmd:         domain.PostMessageCommand{Author: "Alice", Content: longString(201)},
			expectedErr: apperrors.ErrContentTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newServiceFixture(t, nil)

			_, err := f.service.Submit(context.Background(), tt.cmd)
			req.Error(err)
			if tt.expectedErr != nil {
				req.ErrorIs(err, tt.expectedErr)
			}

			// Nothing durable and nothing queued after a rejection.
			count, err := f.outbox.PendingCount()
			req.NoError(err)
			req.Zero(count)
		})
	}
}

func Test_Submit_Missing_Author_Fails_Validation(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)

	_, err := f.service.Submit(context.Background(), domain.PostMessageCommand{Content: "hello"})
	var validationErrs validator.ValidationErrors
	req.ErrorAs(err, &validationErrs)
}

func Test_List_Returns_Cached_Messages(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		_, err := f.service.Submit(ctx, domain.PostMessageCommand{Author: "Alice", Content: content})
		req.NoError(err)
		time.Sleep(2 * time.Millisecond)
	}

	messages, err := f.service.List(ctx, domain.ListMessagesCommand{Limit: 10})
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("second", messages[0].Content)
}

func Test_List_Rejects_Invalid_Limit(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)

	_, err := f.service.List(context.Background(), domain.ListMessagesCommand{Limit: 0})
	req.Error(err)

	_, err = f.service.List(context.Background(), domain.ListMessagesCommand{Limit: 101})
	req.Error(err)
}

func Test_Search_Finds_Posted_Message(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	message, err := f.service.Submit(ctx, domain.PostMessageCommand{
		Author:  "Alice",
		Content: "shipping the release branch today",
	})
	req.NoError(err)

	// Indexing normally rides the event stream; feed it directly here.
	handler := repositories.NewSearchIndexHandler(f.service.search, slog.Default())
	handler.Handle(<-f.events)

	hits, total, err := f.service.Search(ctx, domain.SearchMessagesCommand{Query: "release", Limit: 10})
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Equal(message.ID, hits[0].ID)
}

func Test_Rehydrate_Replaces_Cache_From_History(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	// Local-only message that rehydration must discard.
	_, err := f.service.Submit(ctx, domain.PostMessageCommand{Author: "Ghost", Content: "local only"})
	req.NoError(err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	remote := []domain.Message{
		{ID: uuid.New(), Author: "Alice", Content: "from history", Lang: "en", CreatedAt: at, SyncState: domain.SyncDone, CommitSHA: "sha1"},
		{ID: uuid.New(), Author: "Bob", Content: "also from history", Lang: "en", CreatedAt: at.Add(time.Minute), SyncState: domain.SyncDone, CommitSHA: "sha2"},
	}
	f.history.EXPECT().ListMessages(gomock.Any()).Return(remote, nil)

	restored, err := f.service.Rehydrate(ctx)
	req.NoError(err)
	req.Equal(2, restored)

	messages, err := f.service.List(ctx, domain.ListMessagesCommand{Limit: 10})
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("also from history", messages[0].Content)
}

func Test_Rehydrate_Propagates_History_Error(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, nil)

	f.history.EXPECT().ListMessages(gomock.Any()).Return(nil, apperrors.ErrAuthFailed)

	_, err := f.service.Rehydrate(context.Background())
	req.ErrorIs(err, apperrors.ErrAuthFailed)
}

func longString(n int) string {
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = 'a'
	}
	return string(runes)
}
