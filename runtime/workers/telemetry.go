package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker logs the service's own health metrics (RSS, CPU,
// goroutines) at a fixed interval.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
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
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Debug("Failed to collect memory stats", "err", err)
				continue
			}
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Debug("Failed to collect cpu stats", "err", err)
				continue
			}
			w.log.Info("Self telemetry",
				"rss_bytes", memInfo.RSS,
				"cpu_percent", cpu,
				"goroutines", goruntime.NumGoroutine())
		}
	}
}
