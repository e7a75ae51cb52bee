package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gitboard/domain"
	apperrors "gitboard/errors"
)

// fakeContentsAPI is a minimal in-memory stand-in for the GitHub contents
// endpoints the client uses: GET for files and directory listings, PUT for
// create and update.
type fakeContentsAPI struct {
	mu         sync.Mutex
	files      map[string][]byte
	shas       map[string]string
	commits    int
	forcedCode int
}

func newFakeContentsAPI() *fakeContentsAPI {
	return &fakeContentsAPI{
		files: make(map[string][]byte),
		shas:  make(map[string]string),
	}
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forcedCode != 0 {
		w.WriteHeader(f.forcedCode)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
		return
	}

	const marker = "/contents/"
	idx := strings.Index(r.URL.Path, marker)
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	path := r.URL.Path[idx+len(marker):]

	switch r.Method {
	case http.MethodGet:
		f.handleGet(w, path)
	case http.MethodPut:
		f.handlePut(w, r, path)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *fakeContentsAPI) handleGet(w http.ResponseWriter, path string) {
	if raw, ok := f.files[path]; ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"encoding": "base64",
			"path":     path,
			"sha":      f.shas[path],
			"content":  base64.StdEncoding.EncodeToString(raw),
		})
		return
	}

	var entries []map[string]any
	seenDirs := map[string]bool{}
	for file := range f.files {
		if !strings.HasPrefix(file, path+"/") {
			continue
		}
		rest := file[len(path)+1:]
		if cut := strings.Index(rest, "/"); cut >= 0 {
			child := path + "/" + rest[:cut]
			if !seenDirs[child] {
				seenDirs[child] = true
				entries = append(entries, map[string]any{"type": "dir", "path": child})
			}
		} else {
			entries = append(entries, map[string]any{"type": "file", "path": file, "sha": f.shas[file]})
		}
	}
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(entries)
}

func (f *fakeContentsAPI) handlePut(w http.ResponseWriter, r *http.Request, path string) {
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, exists := f.files[path]
	if exists && body.SHA != f.shas[path] {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"sha mismatch"}`))
		return
	}

	f.commits++
	f.files[path] = raw
	f.shas[path] = fmt.Sprintf("sha-%d", f.commits)

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"content": map[string]any{"sha": f.shas[path], "path": path},
	})
}

func (f *fakeContentsAPI) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *fakeContentsAPI) store(path string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	f.files[path] = raw
	f.shas[path] = fmt.Sprintf("sha-%d", f.commits)
}

func newTestHistory(t *testing.T, fake *fakeContentsAPI) *GithubHistory {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	history := NewGithubHistory("test-token", "acme", "board", "main", slog.Default())
	require.NoError(t, history.WithBaseURL(server.URL+"/"))
	return history
}

func testMessage(content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Author:    "Alice",
		Content:   content,
		Lang:      "en",
		CreatedAt: at,
	}
}

func Test_PushMessage_Creates_File(t *testing.T) {
	req := require.New(t)
	fake := newFakeContentsAPI()
	history := newTestHistory(t, fake)

	at := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	message := testMessage("hello history", at)

	sha, err := history.PushMessage(context.Background(), message)
	req.NoError(err)
	req.NotEmpty(sha)
	req.Equal(1, fake.commitCount())

	path := fmt.Sprintf("messages/2024/03/message_%s.json", message.ID)
	raw, ok := fake.files[path]
	req.True(ok)

	var decoded messageFile
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal(message.ID, decoded.ID)
	req.Equal("hello history", decoded.Content)
	req.True(decoded.Timestamp.Equal(at))
}

func Test_PushMessage_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	fake := newFakeContentsAPI()
	history := newTestHistory(t, fake)

	message := testMessage("push me twice", time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC))

	first, err := history.PushMessage(context.Background(), message)
	req.NoError(err)
	second, err := history.PushMessage(context.Background(), message)
	req.NoError(err)

	req.Equal(first, second)
	req.Equal(1, fake.commitCount())
}

func Test_PushMessage_Updates_Changed_Content(t *testing.T) {
	req := require.New(t)
	fake := newFakeContentsAPI()
	history := newTestHistory(t, fake)

	message := testMessage("original", time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC))
	_, err := history.PushMessage(context.Background(), message)
	req.NoError(err)

	message.Content = "amended"
	sha, err := history.PushMessage(context.Background(), message)
	req.NoError(err)
	req.NotEmpty(sha)
	req.Equal(2, fake.commitCount())
}

func Test_PushMessage_Auth_Failure(t *testing.T) {
	req := require.New(t)
	fake := newFakeContentsAPI()
	fake.forcedCode = http.StatusUnauthorized
	history := newTestHistory(t, fake)

	_, err := history.PushMessage(context.Background(), testMessage("rejected", time.Now().UTC()))
	req.ErrorIs(err, apperrors.ErrAuthFailed)
}

func Test_ListMessages_Walks_History_Oldest_First(t *testing.T) {
	req := require.New(t)
	fake := newFakeContentsAPI()
	history := newTestHistory(t, fake)

	older := testMessage("from february", time.Date(2024, time.February, 2, 9, 0, 0, 0, time.UTC))
	newer := testMessage("from march", time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC))

	// Seed out of order across two month directories.
	for _, message := range []domain.Message{newer, older} {
		raw, err := encodeMessage(message)
		req.NoError(err)
		fake.store(messagePath(message.ID, message.CreatedAt), raw)
	}

	messages, err := history.ListMessages(context.Background())
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("from february", messages[0].Content)
	req.Equal("from march", messages[1].Content)
	req.Equal(domain.SyncDone, messages[0].SyncState)
	req.NotEmpty(messages[0].CommitSHA)
}

func Test_ListMessages_Empty_History(t *testing.T) {
	req := require.New(t)
	history := newTestHistory(t, newFakeContentsAPI())

	messages, err := history.ListMessages(context.Background())
	req.NoError(err)
	req.Empty(messages)
}
