// Command seed_messages posts a batch of sample messages to a running board,
// useful for exercising the sync pipeline and the viewer against real data.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

var sampleMessages = []struct {
	author  string
	content string
}{
	{"alice", "Good morning everyone, the deploy went out clean."},
	{"bob", "Does anyone still have the link to the retro notes?"},
	{"clara", "Bonjour à tous, la migration est terminée côté base."},
	{"diego", "Buenos días, el panel de métricas ya está disponible."},
	{"erik", "Reminder: the outbox drains every five seconds, be patient."},
	{"fatima", "Pushed a fix for the viewer alignment, please pull."},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "Base URL of the board")
	count := flag.Int("n", len(sampleMessages), "Number of messages to post")
	delay := flag.Duration("delay", 200*time.Millisecond, "Pause between posts")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	posted := 0

	for i := 0; i < *count; i++ {
		sample := sampleMessages[i%len(sampleMessages)]
		body, _ := json.Marshal(map[string]string{
			"author":  sample.author,
			"content": fmt.Sprintf("%s (seed %d)", sample.content, i+1),
		})

		resp, err := client.Post(*baseURL+"/messages", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Post %d failed: %v\n", i+1, err)
			os.Exit(1)
		}
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "❌ Post %d rejected: %s\n", i+1, resp.Status)
			resp.Body.Close()
			os.Exit(1)
		}
		resp.Body.Close()
		posted++
		time.Sleep(*delay)
	}

	fmt.Printf("✅ Posted %d messages to %s\n", posted, *baseURL)
}
