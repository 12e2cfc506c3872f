package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

type panickyWorker struct {
	calls atomic.Int32
}

func (w *panickyWorker) Run(_ context.Context) error {
	w.calls.Add(1)
	panic("boom")
}

type oneShotWorker struct {
	calls atomic.Int32
}

func (w *oneShotWorker) Run(_ context.Context) error {
	w.calls.Add(1)
	return nil
}

func TestSupervisor_Restarts_A_Panicking_Worker(t *testing.T) {
	req := require.New(t)
	worker := &panickyWorker{}
	sup := NewSupervisor(testLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	req.Eventually(func() bool { return worker.calls.Load() >= 2 },
		time.Second, 10*time.Millisecond)
}

func TestSupervisor_Does_Not_Restart_A_Finished_Worker(t *testing.T) {
	req := require.New(t)
	worker := &oneShotWorker{}
	sup := NewSupervisor(testLogger(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		req.Equal(int32(1), worker.calls.Load())
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_Stop_Cancels_Running_Workers(t *testing.T) {
	req := require.New(t)
	started := make(chan struct{})
	blocking := workerFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	sup := NewSupervisor(testLogger(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Add(blocking).Run(context.Background())
		close(done)
	}()

	<-started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have unblocked after Stop")
	}
}

type workerFunc func(ctx context.Context) error

func (f workerFunc) Run(ctx context.Context) error { return f(ctx) }
