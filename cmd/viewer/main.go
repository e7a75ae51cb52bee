package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"gitboard/domain"
	"gitboard/repositories"
)

// Read-only cache inspector: renders the SQLite rows as a table with the
// sync state of each message, for a quick look without curl or sqlite3.

type Config struct {
	SQLiteFilepath string `envconfig:"SQLITE_FILEPATH" required:"true"`
}

func main() {
	limit := flag.Int("limit", 50, "Maximum number of messages to display")
	offset := flag.Int("offset", 0, "Number of messages to skip")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger := logs.GetLoggerFromString("WARN")
	cache, err := repositories.OpenMessageRepository(config.SQLiteFilepath, logger)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close()

	messages, err := cache.List(context.Background(), *limit, *offset)
	if err != nil {
		log.Fatalf("Failed to list messages: %v", err)
	}

	pending, err := cache.PendingCount(context.Background())
	if err != nil {
		log.Fatalf("Failed to count pending messages: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "At", "Author", "Lang", "Sync", "Content"})
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

	for _, message := range messages {
		displayID := message.ID.String()[:8]
		content := message.Content
		if len([]rune(content)) > 60 {
			content = string([]rune(content)[:57]) + "..."
		}
		table.Append([]string{
			displayID,
			message.CreatedAt.Format("2006-01-02 15:04:05"),
			message.Author,
			message.Lang,
			colorizeState(message.SyncState),
			content,
		})
	}
	table.Render()

	fmt.Println()
	if pending > 0 {
		color.Yellow.Printf("%d message(s) still waiting for a remote commit\n", pending)
	} else {
		color.Green.Println("All cached messages are in the remote history")
	}
}

func colorizeState(state domain.SyncState) string {
	switch state {
	case domain.SyncDone:
		return color.Green.Sprint(state)
	case domain.SyncFailed:
		return color.Red.Sprint(state)
	default:
		return color.Yellow.Sprint(state)
	}
}
