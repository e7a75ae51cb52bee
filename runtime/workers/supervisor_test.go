package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitboard/domain/event"
)

type countingWorker struct {
	runs   atomic.Int32
	action func(runs int32) error
}

func (w *countingWorker) Run(ctx context.Context) error {
	return w.action(w.runs.Add(1))
}

func Test_Supervisor_Restarts_Crashed_Worker(t *testing.T) {
	req := require.New(t)
	events := make(chan event.Event, 8)
	sup := NewSupervisor(slog.Default(), events, 5*time.Millisecond)

	worker := &countingWorker{}
	worker.action = func(runs int32) error {
		if runs < 3 {
			return fmt.Errorf("crash %d", runs)
		}
		return nil
	}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	req.Equal(int32(3), worker.runs.Load())
}

func Test_Supervisor_Does_Not_Restart_Finished_Worker(t *testing.T) {
	req := require.New(t)
	events := make(chan event.Event, 8)
	sup := NewSupervisor(slog.Default(), events, time.Millisecond)

	worker := &countingWorker{}
	worker.action = func(int32) error { return nil }
	sup.Add(worker)

	sup.Run(context.Background())
	req.Equal(int32(1), worker.runs.Load())
}

func Test_Supervisor_Recovers_Panic_And_Reports(t *testing.T) {
	req := require.New(t)
	events := make(chan event.Event, 8)
	sup := NewSupervisor(slog.Default(), events, time.Millisecond)

	worker := &countingWorker{}
	worker.action = func(runs int32) error {
		if runs == 1 {
			panic("boom")
		}
		return nil
	}
	sup.Add(worker)

	sup.Run(context.Background())
	req.Equal(int32(2), worker.runs.Load())

	e := <-events
	req.Equal(event.RestartedAfterPanicType, e.Type)
	payload, ok := e.Payload.(event.WorkerRestartedAfterPanic)
	req.True(ok)
	req.NotEmpty(payload.WorkerName)
}

func Test_Supervisor_Stop_Cancels_Workers(t *testing.T) {
	req := require.New(t)
	events := make(chan event.Event, 8)
	sup := NewSupervisor(slog.Default(), events, time.Millisecond)

	worker := &countingWorker{}
	worker.action = func(int32) error { return fmt.Errorf("always crashing") }
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	req.GreaterOrEqual(worker.runs.Load(), int32(1))
}
