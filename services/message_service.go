//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"gitboard/domain"
	"gitboard/domain/event"
	apperrors "gitboard/errors"
	"gitboard/moderation"
	"gitboard/remote"
	"gitboard/repositories"
)

type IMessageService interface {
	Submit(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	List(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, error)
	Search(ctx context.Context, cmd domain.SearchMessagesCommand) ([]repositories.SearchHit, uint64, error)
	Rehydrate(ctx context.Context) (int, error)
}

// MessageService is the bridge between the two stores: the SQLite cache that
// answers reads, and the remote version-controlled history that owns the
// data. Submissions are acknowledged once they are durable locally; the sync
// worker mirrors them to the remote asynchronously.
type MessageService struct {
	cache            repositories.IMessageRepository
	outbox           repositories.IOutboxRepository
	search           repositories.ISearchRepository
	history          remote.IRemoteHistory
	moderator        *moderation.Moderator
	events           chan<- event.Event
	log              *slog.Logger
	maxContentLength int
}

func NewMessageService(
	cache repositories.IMessageRepository,
	outbox repositories.IOutboxRepository,
	search repositories.ISearchRepository,
	history remote.IRemoteHistory,
	moderator *moderation.Moderator,
	events chan<- event.Event,
	log *slog.Logger,
	maxContentLength int,
) *MessageService {
	return &MessageService{
		cache:            cache,
		outbox:           outbox,
		search:           search,
		history:          history,
		moderator:        moderator,
		events:           events,
		log:              log,
		maxContentLength: maxContentLength,
	}
}

// Submit runs the dual-write: cache row first (fatal on failure), outbox
// entry second. Once both are durable the submission is acknowledged and a
// MessagePosted event is emitted; the remote commit happens later.
func (s *MessageService) Submit(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return domain.Message{}, err
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if len([]rune(content)) > s.maxContentLength {
		return domain.Message{}, apperrors.ErrContentTooLong
	}

	censored, foundWords := s.moderator.Censor(content)
	if len(foundWords) > 0 {
		s.log.Warn("Censored submission", "author", cmd.Author, "words", len(foundWords))
	}

	info := whatlanggo.Detect(censored)

	message := domain.Message{
		ID:        uuid.New(),
		Author:    strings.TrimSpace(cmd.Author),
		Content:   censored,
		Lang:      info.Lang.Iso6391(),
		CreatedAt: time.Now().UTC(),
		SyncState: domain.SyncPending,
	}

	if err := s.cache.Store(ctx, message); err != nil {
		return domain.Message{}, fmt.Errorf("cache write: %w", err)
	}
	if err := s.outbox.Enqueue(repositories.FromMessage(message)); err != nil {
		// Without an outbox entry the message would silently never reach the
		// remote history, breaking the durability promise. Refuse the write.
		if markErr := s.cache.MarkFailed(ctx, message.ID); markErr != nil {
			s.log.Error("Failed to flag orphaned cache row", "id", message.ID, "error", markErr)
		}
		return domain.Message{}, fmt.Errorf("outbox enqueue: %w", err)
	}

	s.emit(event.Event{
		Type:      event.MessagePostedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.MessagePosted{
			ID:      message.ID,
			Author:  message.Author,
			Content: message.Content,
			Lang:    message.Lang,
			At:      message.CreatedAt,
		},
	})
	return message, nil
}

func (s *MessageService) List(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	return s.cache.List(ctx, cmd.Limit, cmd.Offset)
}

func (s *MessageService) Search(ctx context.Context, cmd domain.SearchMessagesCommand) ([]repositories.SearchHit, uint64, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, 0, err
	}
	return s.search.Search(ctx, cmd.Query, cmd.Limit)
}

// Rehydrate rebuilds the cache and the search index from the remote history.
// The operation is idempotent: the remote set fully replaces the local one.
func (s *MessageService) Rehydrate(ctx context.Context) (int, error) {
	messages, err := s.history.ListMessages(ctx)
	if err != nil {
		return 0, fmt.Errorf("list remote history: %w", err)
	}
	if err := s.cache.ReplaceAll(ctx, messages); err != nil {
		return 0, fmt.Errorf("rebuild cache: %w", err)
	}
	for _, message := range messages {
		if err := s.search.Index(message); err != nil {
			return 0, fmt.Errorf("reindex message %s: %w", message.ID, err)
		}
	}
	s.log.Info("Cache rehydrated from remote history", "messages", len(messages))
	return len(messages), nil
}

// emit never blocks the submission path: when the event buffer is full the
// event is dropped, observability is best-effort.
func (s *MessageService) emit(e event.Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("Event buffer full, dropping event", "type", e.Type)
	}
}
