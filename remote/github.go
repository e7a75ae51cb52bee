//go:generate go run go.uber.org/mock/mockgen -source=github.go -destination=../mocks/mock_remote_history.go -package=mocks

// Package remote talks to the authoritative message store: a GitHub
// repository holding one JSON file per message, committed through the REST
// contents API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"gitboard/domain"
	apperrors "gitboard/errors"
)

const messagesDir = "messages"

// messageFile is the wire format committed to the repository, one file per
// message under messages/YYYY/MM/message_<id>.json.
type messageFile struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type IRemoteHistory interface {
	// PushMessage commits the message and returns the blob SHA of its file.
	// Pushing the same message twice must not create a second commit.
	PushMessage(ctx context.Context, message domain.Message) (string, error)
	// ListMessages walks the whole remote history, oldest first.
	ListMessages(ctx context.Context) ([]domain.Message, error)
}

// GithubHistory implements IRemoteHistory against the GitHub contents API.
type GithubHistory struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	log    *slog.Logger
}

func NewGithubHistory(token, owner, repo, branch string, log *slog.Logger) *GithubHistory {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &GithubHistory{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		branch: branch,
		log:    log,
	}
}

// WithBaseURL points the client at a different API endpoint. Used by tests
// to talk to a local fake instead of api.github.com.
func (g *GithubHistory) WithBaseURL(baseURL string) error {
	u, err := g.client.BaseURL.Parse(baseURL)
	if err != nil {
		return err
	}
	g.client.BaseURL = u
	return nil
}

// messagePath mirrors the layout of the original store: files are grouped by
// the year/month of the message timestamp.
func messagePath(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s/%s/message_%s.json", messagesDir, at.UTC().Format("2006/01"), id)
}

func encodeMessage(message domain.Message) ([]byte, error) {
	return json.MarshalIndent(messageFile{
		ID:        message.ID,
		Author:    message.Author,
		Content:   message.Content,
		Lang:      message.Lang,
		Timestamp: message.CreatedAt.UTC(),
	}, "", "  ")
}

// PushMessage is idempotent. If the file already exists with identical
// content the existing blob SHA is returned and no commit is created, so a
// retried or resubmitted message never duplicates history.
func (g *GithubHistory) PushMessage(ctx context.Context, message domain.Message) (string, error) {
	content, err := encodeMessage(message)
	if err != nil {
		return "", err
	}

	path := messagePath(message.ID, message.CreatedAt)
	commitMessage := fmt.Sprintf("Add message %s", message.ID)

	existing, err := g.getFile(ctx, path)
	if err != nil {
		return "", err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(commitMessage),
		Content: content,
		Branch:  github.String(g.branch),
	}

	if existing == nil {
		created, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
		if err != nil {
			return "", g.classify(err)
		}
		return created.Content.GetSHA(), nil
	}

	current, err := existing.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode remote file %s: %w", path, err)
	}
	if bytes.Equal([]byte(current), content) {
		g.log.Debug("Remote file already up to date, skipping commit", "path", path)
		return existing.GetSHA(), nil
	}

	opts.SHA = github.String(existing.GetSHA())
	updated, _, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		return "", g.classify(err)
	}
	return updated.Content.GetSHA(), nil
}

// ListMessages walks messages/YYYY/MM directories and decodes every file.
// An absent messages directory means an empty history, not an error.
func (g *GithubHistory) ListMessages(ctx context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	if err := g.walk(ctx, messagesDir, &messages); err != nil {
		return nil, err
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (g *GithubHistory) walk(ctx context.Context, path string, out *[]domain.Message) error {
	_, entries, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return g.classify(err)
	}

	for _, entry := range entries {
		switch entry.GetType() {
		case "dir":
			if err := g.walk(ctx, entry.GetPath(), out); err != nil {
				return err
			}
		case "file":
			message, err := g.fetchMessage(ctx, entry.GetPath(), entry.GetSHA())
			if err != nil {
				return err
			}
			*out = append(*out, message)
		}
	}
	return nil
}

func (g *GithubHistory) fetchMessage(ctx context.Context, path, sha string) (domain.Message, error) {
	file, err := g.getFile(ctx, path)
	if err != nil {
		return domain.Message{}, err
	}
	if file == nil {
		return domain.Message{}, fmt.Errorf("remote file vanished: %s", path)
	}
	raw, err := file.GetContent()
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode remote file %s: %w", path, err)
	}
	var decoded messageFile
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return domain.Message{}, fmt.Errorf("corrupted remote file %s: %w", path, err)
	}
	return domain.Message{
		ID:        decoded.ID,
		Author:    decoded.Author,
		Content:   decoded.Content,
		Lang:      decoded.Lang,
		CreatedAt: decoded.Timestamp.UTC(),
		SyncState: domain.SyncDone,
		CommitSHA: sha,
	}, nil
}

// getFile returns nil without error when the path does not exist.
func (g *GithubHistory) getFile(ctx context.Context, path string) (*github.RepositoryContent, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, g.classify(err)
	}
	return file, nil
}

// classify folds 401/403 into ErrAuthFailed so callers can tell a bad token
// from a transient outage. Auth failures are reported, never retried forever.
func (g *GithubHistory) classify(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return fmt.Errorf("%w: %s", apperrors.ErrAuthFailed, ghErr.Message)
		}
	}
	return err
}
