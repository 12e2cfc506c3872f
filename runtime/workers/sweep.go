package workers

import (
	"context"
	"log/slog"
	"time"

	"lyceum/contract"
)

// PresenceSweepWorker triggers the periodic expiry of stale presence
// records. This is the only scheduled, non-event-triggered mutation
// path in the system; the sweeper serializes the actual work, so two
// ticks can never sweep concurrently.
type PresenceSweepWorker struct {
	log       *slog.Logger
	sweeper   contract.StaleSweeper
	interval  time.Duration
	threshold time.Duration
}

func NewPresenceSweepWorker(log *slog.Logger, sweeper contract.StaleSweeper,
	interval, threshold time.Duration) *PresenceSweepWorker {
	return &PresenceSweepWorker{log: log, sweeper: sweeper, interval: interval, threshold: threshold}
}

func (w *PresenceSweepWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweep worker",
		"interval", w.interval, "threshold", w.threshold)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweeper.ExpireStalePresence(w.threshold)
		}
	}
}
