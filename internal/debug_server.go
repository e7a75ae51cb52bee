package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Author    string
	Content   string
	Timestamp string
	Attempts  string
	LastError string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes a read-only HTML view over the outbox on a
// separate port. Never expose this publicly: it shows raw queue state.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "sync:pending:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, toInspectRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}

func toInspectRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Author:    "--------",
		Timestamp: "--:--:--",
		Attempts:  "-",
		Content:   "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	var entry struct {
		Author    string    `json:"author"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
		Attempts  int       `json:"attempts"`
		LastError string    `json:"last_error"`
	}
	if err := json.Unmarshal(val, &entry); err != nil {
		return row
	}

	row.Author = entry.Author
	row.Content = entry.Content
	if len(row.Content) > 80 {
		row.Content = row.Content[:80] + "…"
	}
	row.Timestamp = entry.CreatedAt.Format("2006-01-02 15:04:05")
	row.Attempts = strconv.Itoa(entry.Attempts)
	row.LastError = entry.LastError
	return row
}
