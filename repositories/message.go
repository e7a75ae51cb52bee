//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gitboard/domain"
	apperrors "gitboard/errors"
)

type IMessageRepository interface {
	Store(ctx context.Context, message domain.Message) error
	Get(ctx context.Context, id uuid.UUID) (domain.Message, error)
	List(ctx context.Context, limit, offset int) ([]domain.Message, error)
	MarkSynced(ctx context.Context, id uuid.UUID, commitSHA string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	PendingCount(ctx context.Context) (int, error)
	ReplaceAll(ctx context.Context, messages []domain.Message) error
}

// MessageRepository is the local read cache: a disposable SQLite projection
// of the remote history. It can be dropped and rebuilt at any time.
type MessageRepository struct {
	db  *sql.DB
	log *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id         TEXT PRIMARY KEY,
    author     TEXT NOT NULL,
    content    TEXT NOT NULL,
    lang       TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    sync_state TEXT NOT NULL DEFAULT 'pending',
    commit_sha TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// OpenMessageRepository opens the SQLite file and applies the schema.
// WAL keeps reads cheap while the sync worker writes state transitions.
func OpenMessageRepository(path string, log *slog.Logger) (*MessageRepository, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &MessageRepository{db: db, log: log}, nil
}

func (m *MessageRepository) Close() error {
	return m.db.Close()
}

func (m *MessageRepository) Store(ctx context.Context, message domain.Message) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO messages (id, author, content, lang, created_at, sync_state, commit_sha)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.ID.String(),
		message.Author,
		message.Content,
		message.Lang,
		toMillis(message.CreatedAt),
		string(message.SyncState),
		message.CommitSHA,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (m *MessageRepository) Get(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, author, content, lang, created_at, sync_state, commit_sha
		 FROM messages WHERE id = ?`, id.String())
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, apperrors.ErrNotFound
	}
	return message, err
}

// List returns messages newest first, mirroring the read path of the web UI.
func (m *MessageRepository) List(ctx context.Context, limit, offset int) ([]domain.Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, author, content, lang, created_at, sync_state, commit_sha
		 FROM messages ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (m *MessageRepository) MarkSynced(ctx context.Context, id uuid.UUID, commitSHA string) error {
	return m.setSyncState(ctx, id, domain.SyncDone, commitSHA)
}

func (m *MessageRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return m.setSyncState(ctx, id, domain.SyncFailed, "")
}

func (m *MessageRepository) setSyncState(ctx context.Context, id uuid.UUID, state domain.SyncState, commitSHA string) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE messages SET sync_state = ?, commit_sha = ? WHERE id = ?`,
		string(state), commitSHA, id.String())
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (m *MessageRepository) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE sync_state = ?`,
		string(domain.SyncPending)).Scan(&count)
	return count, err
}

// ReplaceAll swaps the whole cache for the given set in one transaction.
// Used by rehydration: the remote history is authoritative, the cache is not.
func (m *MessageRepository) ReplaceAll(ctx context.Context, messages []domain.Message) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rehydration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	for _, message := range messages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, author, content, lang, created_at, sync_state, commit_sha)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			message.ID.String(),
			message.Author,
			message.Content,
			message.Lang,
			toMillis(message.CreatedAt),
			string(message.SyncState),
			message.CommitSHA,
		)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", message.ID, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		id, author, content, lang, state, sha string
		createdAt                             int64
	)
	if err := row.Scan(&id, &author, &content, &lang, &createdAt, &state, &sha); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("corrupted cache row %q: %w", id, err)
	}
	return domain.Message{
		ID:        parsedID,
		Author:    author,
		Content:   content,
		Lang:      lang,
		CreatedAt: fromMillis(createdAt),
		SyncState: domain.SyncState(state),
		CommitSHA: sha,
	}, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
