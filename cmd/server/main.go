package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"gitboard/domain/event"
	"gitboard/infrastructure/web"
	"gitboard/internal"
	"gitboard/moderation"
	"gitboard/observability"
	"gitboard/remote"
	"gitboard/repositories"
	"gitboard/runtime/workers"
	"gitboard/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const restartInterval = 2 * time.Second

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Calling os.Exit directly would skip the deferred database cleanups; keeping
// everything in one function also keeps the shutdown order readable.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage: SQLite cache, Badger outbox, Bluge index
	cache, err := repositories.OpenMessageRepository(config.SQLiteFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("cache opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing SQLite cache...")
		_ = cache.Close()
	}()

	outboxDB, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("outbox opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing outbox...")
		_ = outboxDB.Close()
	}()
	outbox := repositories.NewOutboxRepository(outboxDB, logger)

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()
	search := repositories.NewSearchRepository(blugeWriter, logger)

	// 3. Remote history & moderation
	owner, repo := config.RepoOwnerName()
	if owner == "" {
		return exitConfig, fmt.Errorf("GITHUB_REPO must look like owner/name, got %q", config.GithubRepo)
	}
	history := remote.NewGithubHistory(config.GithubToken, owner, repo, config.GithubBranch, logger)

	moderator, err := moderation.NewModerator(config.CensoredWordList(), config.CensoredRune(), logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator init failed: %w", err)
	}

	// 4. Events, monitoring, service
	eventChan := make(chan event.Event, config.BufferSize)
	counter := event.NewCounter()
	monitoring := observability.NewMonitoringManager(logger, counter)

	service := services.NewMessageService(
		cache, outbox, search, history, &moderator,
		eventChan, logger, config.MaxContentLength,
	)

	if config.RestoreOnStart {
		logger.Info("Rebuilding cache from remote history...")
		count, err := service.Rehydrate(ctx)
		if err != nil {
			return exitRuntime, fmt.Errorf("rehydration failed: %w", err)
		}
		logger.Info("Rehydration done", "messages", count)
	}

	if config.DebugPort > 0 {
		logger.Warn("Outbox debug inspector enabled", "port", config.DebugPort)
		internal.StartDebugServer(outboxDB, config.DebugPort, func() map[string]any {
			pending, _ := outbox.PendingCount()
			return map[string]any{
				"outbox_pending": pending,
				"posted":         counter.Value(event.MessagePostedType),
				"synced":         counter.Value(event.MessageSyncedType),
			}
		})
	}

	// 5. Supervision: sync drain, event fanout, heartbeat
	sup := workers.NewSupervisor(logger, eventChan, restartInterval)
	fanout := workers.NewEventFanout(logger, eventChan).Add(
		event.NewMessagePostedHandler(logger, counter),
		event.NewSyncHandler(logger, counter),
		event.NewWorkerRestartedAfterPanicHandler(logger, counter),
		repositories.NewSearchIndexHandler(search, logger),
	)
	sup.Add(
		fanout,
		workers.NewSyncWorker(
			outbox, cache, history, eventChan, logger,
			config.SyncInterval, config.OutboxBatchSize, config.MaxSyncAttempts,
		),
		workers.NewHeartbeatWorker(logger, monitoring, outbox, config.MetricInterval),
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
			{Name: "events", Channel: eventChan},
		}, config.MetricInterval),
	)

	// 6. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & workers)
	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting workers...")
		sup.Run(ctx)
	}()

	// 7. HTTP Server Setup
	handler := web.NewHandler(service, monitoring, logger, config.StaticDir)
	router := web.NewRouter(handler, logger)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := &http.Server{Addr: address, Handler: router}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// In-flight requests get a grace period; workers drain their channels.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.OutboxFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
