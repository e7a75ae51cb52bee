package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"gitboard/domain"
	"gitboard/domain/event"
)

// SearchHit is one full-text match from the message index.
type SearchHit struct {
	ID        uuid.UUID
	Author    string
	Content   string
	CreatedAt time.Time
}

type ISearchRepository interface {
	Index(message domain.Message) error
	Search(ctx context.Context, query string, limit int) ([]SearchHit, uint64, error)
}

// SearchRepository maintains a Bluge full-text index over message content
// and author. The index is derived data, like the cache: losing it only
// costs reindexing.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) *SearchRepository {
	return &SearchRepository{writer: writer, log: log}
}

func (s *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewTextField("author", message.Author).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt).StoreValue())

	// Update keeps reindexing idempotent for a given message ID.
	if err := s.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

func (s *SearchRepository) Search(ctx context.Context, query string, limit int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(query).SetField("content")).
		AddShould(bluge.NewMatchQuery(query).SetField("author"))
	request := bluge.NewTopNSearch(limit, q).WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search %q: %w", query, err)
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.ID = id
				}
			case "author":
				hit.Author = string(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if at, parseErr := bluge.DecodeDateTime(value); parseErr == nil {
					hit.CreatedAt = at.UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}
	return hits, iterator.Aggregations().Count(), nil
}

// SearchIndexHandler feeds the index from the event stream so indexing never
// sits on the submission path.
type SearchIndexHandler struct {
	repository ISearchRepository
	log        *slog.Logger
}

func NewSearchIndexHandler(repository ISearchRepository, log *slog.Logger) *SearchIndexHandler {
	return &SearchIndexHandler{repository: repository, log: log}
}

func (h *SearchIndexHandler) Handle(e event.Event) {
	posted, ok := e.Payload.(event.MessagePosted)
	if e.Type != event.MessagePostedType || !ok {
		return
	}
	message := domain.Message{
		ID:        posted.ID,
		Author:    posted.Author,
		Content:   posted.Content,
		Lang:      posted.Lang,
		CreatedAt: posted.At,
	}
	if err := h.repository.Index(message); err != nil {
		h.log.Error("Indexing failed", "id", posted.ID, "error", err)
	}
}
