//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"lyceum/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound notifications for one live connection.
// Consume must not block: delivery is best-effort and a sink that cannot
// keep up (or has disconnected) returns an error and the notification is lost.
type EventSink interface {
	ID() string
	Consume(e event.Notification) error
}

// Authenticator resolves a credential token into a user identifier.
// On failure the engine degrades to an anonymous identity, it never
// rejects the connection.
type Authenticator interface {
	ResolveIdentity(ctx context.Context, token string) (string, error)
}

// StaleSweeper expires presence records inactive beyond a threshold.
// Implementations must guarantee a single in-flight sweep at a time.
type StaleSweeper interface {
	ExpireStalePresence(threshold time.Duration)
}
