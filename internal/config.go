package internal

import (
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8081"`
	DebugPort int    `env:"DEBUG_PORT,default=0"`

	SQLiteFilepath string `env:"SQLITE_FILEPATH,required=true"`
	OutboxFilepath string `env:"OUTBOX_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	StaticDir      string `env:"STATIC_DIR,default=static"`

	GithubToken  string `env:"GITHUB_TOKEN,required=true"`
	GithubRepo   string `env:"GITHUB_REPO,required=true"`
	GithubBranch string `env:"GITHUB_BRANCH,default=main"`

	SyncInterval    time.Duration `env:"SYNC_INTERVAL,default=5s"`
	MaxSyncAttempts int           `env:"MAX_SYNC_ATTEMPTS,default=10"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE,default=20"`

	BufferSize       int           `env:"BUFFER_SIZE,default=256"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=5s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	LimitMessages    *int          `env:"LIMIT_MESSAGES"`

	CensoredWords  string `env:"CENSORED_WORDS"`
	CensoredChar   string `env:"CENSORED_CHARACTER,default=*"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	RestoreOnStart bool   `env:"RESTORE_ON_START,default=false"`
}

// CensoredWordList splits the comma-separated dictionary from the environment.
func (c Config) CensoredWordList() []string {
	if strings.TrimSpace(c.CensoredWords) == "" {
		return nil
	}
	parts := strings.Split(c.CensoredWords, ",")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := strings.TrimSpace(p); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// CensoredRune returns the single replacement character, defaulting to '*'
// when the variable holds anything but exactly one rune.
func (c Config) CensoredRune() rune {
	r := []rune(c.CensoredChar)
	if len(r) != 1 {
		return '*'
	}
	return r[0]
}

// RepoOwnerName splits GITHUB_REPO ("owner/name") into its two parts.
func (c Config) RepoOwnerName() (string, string) {
	owner, name, found := strings.Cut(c.GithubRepo, "/")
	if !found {
		return "", c.GithubRepo
	}
	return owner, name
}
