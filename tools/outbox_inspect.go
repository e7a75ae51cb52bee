// Command outbox_inspect dumps the sync outbox to the terminal. Run it
// against a stopped server (Badger holds an exclusive lock) to see what is
// still waiting for its commit, or what died after exhausting its retries.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "data/outbox", "Path to the outbox Badger DB")
	prefix := flag.String("prefix", "sync:pending:", "Prefix to scan (sync:pending: or sync:dead:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR).WithReadOnly(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Author", "Created", "Attempts", "Last Error", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			err := item.Value(func(v []byte) error {
				var entry struct {
					ID        string `json:"id"`
					Author    string `json:"author"`
					Content   string `json:"content"`
					CreatedAt string `json:"created_at"`
					Attempts  int    `json:"attempts"`
					LastError string `json:"last_error"`
				}
				if err := json.Unmarshal(v, &entry); err != nil {
					// Log and keep scanning instead of aborting the whole dump.
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				content := entry.Content
				if len(content) > 60 {
					content = content[:60] + "…"
				}
				table.Append([]string{
					entry.ID,
					entry.Author,
					entry.CreatedAt,
					fmt.Sprintf("%d", entry.Attempts),
					entry.LastError,
					content,
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	if rows == 0 {
		fmt.Printf("No entries under prefix %q\n", *prefix)
		return
	}
	table.Render()
	fmt.Printf("\n%d entries under prefix %q\n", rows, *prefix)
}
