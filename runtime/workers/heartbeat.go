package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"gitboard/observability"
	"gitboard/repositories"
)

// HeartbeatWorker periodically samples the process (CPU, RSS) and the outbox
// depth, and refreshes the monitoring snapshot served on /health.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	outbox     repositories.IOutboxRepository
	interval   time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	outbox repositories.IOutboxRepository,
	interval time.Duration,
) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:        log,
		monitoring: monitoring,
		outbox:     outbox,
		interval:   interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			pending, err := w.outbox.PendingCount()
			if err != nil {
				w.log.Error("Failed to count pending outbox entries", "err", err)
				continue
			}
			w.monitoring.Refresh(pending, cpu, rss)
			w.log.Debug("Heartbeat", "outbox_pending", pending, "cpu", cpu, "rss", rss)
		}
	}
}

// getSelfStats retrieves memory and CPU usage for the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
