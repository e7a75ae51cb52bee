package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"gitboard/domain/event"
)

// MonitoringStats aggregates the numbers exposed on /health.
type MonitoringStats struct {
	MessagesPosted  uint64  `json:"messages_posted"`
	MessagesSynced  uint64  `json:"messages_synced"`
	SyncFailures    uint64  `json:"sync_failures"`
	WorkerRestarts  uint64  `json:"worker_restarts"`
	OutboxPending   int     `json:"outbox_pending"`
	ProcessCPU      float64 `json:"process_cpu_percent"`
	ProcessRSSBytes uint64  `json:"process_rss_bytes"`
	AllocMemMb      uint64  `json:"alloc_mem_mb"`
	NumGC           uint32  `json:"num_gc"`
	UpdatedAt       string  `json:"updated_at"`
}

// MonitoringManager keeps the latest telemetry snapshot. The heartbeat
// worker refreshes it; the HTTP health endpoint reads it.
type MonitoringManager struct {
	log         *slog.Logger
	counter     *event.Counter
	mu          sync.RWMutex
	latestStats MonitoringStats
}

func NewMonitoringManager(log *slog.Logger, counter *event.Counter) *MonitoringManager {
	return &MonitoringManager{log: log, counter: counter}
}

// Refresh recomputes the snapshot from the event counters, the outbox depth
// and the process metrics sampled by the caller.
func (mm *MonitoringManager) Refresh(outboxPending int, cpuPercent float64, rssBytes uint64) {
	totals := mm.counter.Snapshot()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats = MonitoringStats{
		MessagesPosted:  totals[event.MessagePostedType],
		MessagesSynced:  totals[event.MessageSyncedType],
		SyncFailures:    totals[event.SyncFailedType],
		WorkerRestarts:  totals[event.RestartedAfterPanicType],
		OutboxPending:   outboxPending,
		ProcessCPU:      cpuPercent,
		ProcessRSSBytes: rssBytes,
		AllocMemMb:      m.Alloc / 1024 / 1024,
		NumGC:           m.NumGC,
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
