package workers

import (
	"context"
	"log/slog"

	"lyceum/contract"
	"lyceum/domain/event"
)

// Resolver maps a delivery scope to the live sinks it reaches.
type Resolver interface {
	Resolve(scope event.Scope) []contract.EventSink
}

// FanoutWorker delivers queued notifications to the connections their
// scope selects. Delivery is best-effort with no guarantees regarding
// ordering, durability, or retries: a sink that errors (closed or
// saturated connection) simply misses the notification.
type FanoutWorker struct {
	log      *slog.Logger
	resolver Resolver
	notes    chan event.Envelope
}

func NewFanoutWorker(log *slog.Logger, resolver Resolver, notes chan event.Envelope) *FanoutWorker {
	return &FanoutWorker{log: log, resolver: resolver, notes: notes}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fan-out")
			return nil
		case env, ok := <-w.notes:
			if !ok {
				return nil
			}
			w.Fanout(env)
		}
	}
}

// Fanout one delivery attempt per resolved sink.
func (w *FanoutWorker) Fanout(env event.Envelope) {
	for _, sink := range w.resolver.Resolve(env.Scope) {
		if err := sink.Consume(env.Note); err != nil {
			w.log.Debug("Delivery dropped",
				"kind", env.Note.Kind(), "conn", sink.ID(), "err", err)
		}
	}
}
