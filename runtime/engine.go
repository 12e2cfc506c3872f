package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"lyceum/contract"
	"lyceum/domain"
	"lyceum/domain/event"
	"lyceum/moderation"
	"lyceum/presence"
	"lyceum/rooms"
)

// AckFunc delivers a response payload on the caller's acknowledgment path.
type AckFunc func(payload any)

// Engine is the session event engine. Every mutation of the room
// registry, the history store and the presence directory goes through
// its task queue and is executed by a single goroutine, so handlers
// always observe a consistent snapshot and never race each other or
// the presence sweep.
type Engine struct {
	log       *slog.Logger
	auth      contract.Authenticator
	rooms     *rooms.Registry
	history   *rooms.HistoryStore
	presence  *presence.Directory
	registry  *Registry
	moderator *moderation.Moderator
	validate  *validator.Validate
	sessions  map[string]domain.Identity // connection -> identity, engine goroutine only
	tasks     chan func()
	notes     chan event.Envelope
	now       func() time.Time
}

func NewEngine(
	log *slog.Logger,
	auth contract.Authenticator,
	roomRegistry *rooms.Registry,
	history *rooms.HistoryStore,
	directory *presence.Directory,
	registry *Registry,
	moderator *moderation.Moderator,
	bufferSize int,
) *Engine {
	return &Engine{
		log:       log,
		auth:      auth,
		rooms:     roomRegistry,
		history:   history,
		presence:  directory,
		registry:  registry,
		moderator: moderator,
		validate:  validator.New(),
		sessions:  make(map[string]domain.Identity),
		tasks:     make(chan func(), bufferSize),
		notes:     make(chan event.Envelope, bufferSize),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Notifications is the outbound side of the engine,
// drained by the fan-out worker.
func (e *Engine) Notifications() chan event.Envelope {
	return e.notes
}

// Run drains the task queue, one task at a time.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.log.Debug("Stopping engine")
			return ctx.Err()
		case task, ok := <-e.tasks:
			if !ok {
				return nil
			}
			task()
		}
	}
}

// submit enqueues a mutation. Producers are the per-connection read
// pumps and the sweep ticker; a full queue applies backpressure to them.
func (e *Engine) submit(task func()) {
	e.tasks <- task
}

// emit queues a notification for fan-out. Broadcast is best-effort:
// when the channel is saturated the notification is dropped.
func (e *Engine) emit(scope event.Scope, note event.Notification) {
	select {
	case e.notes <- event.Envelope{Scope: scope, Note: note}:
	default:
		e.log.Warn("Notification channel full, dropping", "kind", note.Kind())
	}
}

// Connect binds a connection to an identity and registers its sink.
// Identity resolution may block, but only the initiating connection's
// setup path waits on it; the engine goroutine is not involved until
// the resolved binding is submitted.
func (e *Engine) Connect(ctx context.Context, sink contract.EventSink, token string) domain.Identity {
	identity := e.resolveIdentity(ctx, token, sink.ID())
	e.submit(func() {
		e.registry.AddSink(sink)
		e.sessions[sink.ID()] = identity
		if identity.IsAuthenticated() {
			e.presence.SetOnline(identity.UserID, sink.ID())
			e.emit(event.ToAll(), event.StatusChanged{UserID: identity.UserID, Status: "online"})
		}
	})
	return identity
}

// resolveIdentity degrades to an anonymous identity instead of
// rejecting the connection, whatever went wrong with the token.
func (e *Engine) resolveIdentity(ctx context.Context, token, connID string) domain.Identity {
	if token == "" {
		return domain.Anonymous(connID)
	}
	userID, err := e.auth.ResolveIdentity(ctx, token)
	if err != nil {
		e.log.Debug("Identity resolution failed, falling back to anonymous",
			"conn", connID, "err", err)
		return domain.Anonymous(connID)
	}
	return domain.Authenticated(userID)
}

// Disconnect removes the connection from every room it joined, tears
// down its presence record when the identity was authenticated, and
// forgets the session binding.
func (e *Engine) Disconnect(connID string) {
	e.submit(func() {
		for _, dep := range e.rooms.LeaveByConn(connID) {
			e.emit(event.ToRoom(dep.Room), event.UserDisconnected{
				Room:     dep.Room,
				UserID:   dep.Participant.UserID,
				Username: dep.Participant.Username,
			})
			if dep.Emptied {
				e.history.Drop(dep.Room)
			} else {
				e.emit(event.ToRoom(dep.Room), event.RoomUsers{
					Room:  dep.Room,
					Users: e.rooms.Participants(dep.Room),
				})
			}
			e.registry.Unsubscribe(connID, dep.Room)
		}

		if identity, ok := e.sessions[connID]; ok && identity.IsAuthenticated() {
			seen := e.presence.SetOffline(identity.UserID)
			e.emit(event.ToAll(), event.StatusChanged{
				UserID:   identity.UserID,
				Status:   "offline",
				LastSeen: toMillis(seen),
			})
		}
		delete(e.sessions, connID)
		e.registry.RemoveSink(connID)
	})
}

// Dispatch routes one inbound event to its handler on the engine goroutine.
func (e *Engine) Dispatch(connID, kind string, data json.RawMessage, ack AckFunc) {
	e.submit(func() {
		switch kind {
		case EventJoinRoom:
			e.handleJoinRoom(connID, data)
		case EventMediaState:
			e.handleMediaState(connID, data)
		case EventSendMessage:
			e.handleSendMessage(data)
		case EventUpdateStatus:
			e.handleUpdateStatus(connID, data)
		case EventHeartbeat:
			e.handleHeartbeat(connID, ack)
		case EventUserStatus:
			e.handleUserStatus(data, ack)
		case EventOnlineUsers:
			e.handleOnlineUsers(ack)
		default:
			e.log.Debug("Ignoring unknown event", "event", kind, "conn", connID)
		}
	})
}

func (e *Engine) handleJoinRoom(connID string, data json.RawMessage) {
	var p joinRoomPayload
	if !e.decode(EventJoinRoom, data, &p) {
		return
	}

	res := e.rooms.Join(p.RoomID, domain.Participant{
		UserID:   p.UserID,
		Username: p.Username,
		Media:    p.Media,
		ConnID:   connID,
	})

	if res.Evicted != nil {
		e.emit(event.ToRoom(p.RoomID), event.UserDisconnected{
			Room:     p.RoomID,
			UserID:   res.Evicted.UserID,
			Username: res.Evicted.Username,
		})
		e.registry.Unsubscribe(res.Evicted.ConnID, p.RoomID)
	}

	e.registry.Subscribe(connID, p.RoomID)
	e.emit(event.ToRoomExcept(p.RoomID, connID), event.UserConnected{
		Room:     p.RoomID,
		UserID:   p.UserID,
		Username: p.Username,
		Media:    p.Media,
	})
	e.emit(event.ToRoom(p.RoomID), event.RoomUsers{Room: p.RoomID, Users: res.Users})
	e.emit(event.ToConn(connID), event.RoomMessages{Room: p.RoomID, Messages: e.history.Get(p.RoomID)})
}

func (e *Engine) handleMediaState(connID string, data json.RawMessage) {
	var p mediaStatePayload
	if !e.decode(EventMediaState, data, &p) {
		return
	}
	if _, ok := e.rooms.UpdateMedia(p.RoomID, p.UserID, p.Media); !ok {
		return
	}
	e.emit(event.ToRoomExcept(p.RoomID, connID), event.MediaStateChanged{
		Room:   p.RoomID,
		UserID: p.UserID,
		Media:  p.Media,
	})
}

func (e *Engine) handleSendMessage(data json.RawMessage) {
	var p sendMessagePayload
	if !e.decode(EventSendMessage, data, &p) {
		return
	}
	content := p.Message
	if e.moderator != nil {
		content = e.moderator.Censor(content)
	}
	msg := domain.NewMessage(p.UserID, p.Username, content, e.now())
	e.history.Append(p.RoomID, msg)
	// Room-scoped on purpose: chat events never leave their room.
	e.emit(event.ToRoom(p.RoomID), event.MessageReceived{Room: p.RoomID, Message: msg})
}

func (e *Engine) handleUpdateStatus(connID string, data json.RawMessage) {
	var p updateStatusPayload
	if !e.decode(EventUpdateStatus, data, &p) {
		return
	}
	identity, ok := e.sessions[connID]
	if !ok {
		e.log.Debug("No session bound to connection", "conn", connID)
		return
	}

	switch p.Status {
	case "online":
		e.presence.SetOnline(identity.UserID, connID)
		e.emit(event.ToAll(), event.StatusChanged{UserID: identity.UserID, Status: "online"})
	case "offline":
		seen := e.presence.SetOffline(identity.UserID)
		e.emit(event.ToAll(), event.StatusChanged{
			UserID:   identity.UserID,
			Status:   "offline",
			LastSeen: toMillis(seen),
		})
	}
}

func (e *Engine) handleHeartbeat(connID string, ack AckFunc) {
	identity, bound := e.sessions[connID]
	refreshed := bound && e.presence.Heartbeat(identity.UserID)
	e.ack(ack, func() any {
		return heartbeatAck{OK: refreshed, Timestamp: e.now().UnixMilli()}
	})
}

func (e *Engine) handleUserStatus(data json.RawMessage, ack AckFunc) {
	var p userStatusPayload
	if !e.decode(EventUserStatus, data, &p) {
		return
	}
	e.ack(ack, func() any {
		return userStatusAck{UserID: p.UserID, Status: e.presence.StatusOf(p.UserID)}
	})
}

func (e *Engine) handleOnlineUsers(ack AckFunc) {
	e.ack(ack, func() any {
		return onlineUsersAck{Users: e.presence.ListOnline()}
	})
}

// ExpireStalePresence runs one sweep on the engine goroutine.
// Serializing through the task queue guarantees a single in-flight
// sweep and no overlap with event handlers.
func (e *Engine) ExpireStalePresence(threshold time.Duration) {
	e.submit(func() {
		for _, exp := range e.presence.Sweep(e.now(), threshold) {
			e.emit(event.ToAll(), event.StatusChanged{
				UserID:   exp.UserID,
				Status:   "offline",
				LastSeen: lo.ToPtr(exp.LastSeen.UnixMilli()),
			})
		}
	})
}

// decode checks the minimal shape of an inbound payload.
// Malformed input is dropped with a diagnostic log, nothing is
// surfaced to the caller.
func (e *Engine) decode(kind string, data json.RawMessage, out any) bool {
	if err := json.Unmarshal(data, out); err != nil {
		e.log.Debug("Dropping malformed event", "event", kind, "err", err)
		return false
	}
	if err := e.validate.Struct(out); err != nil {
		e.log.Debug("Dropping event with missing fields", "event", kind, "err", err)
		return false
	}
	return true
}

// ack runs an acknowledgment path. A panic while computing the
// response is converted into a structured failure payload instead of
// crashing the engine.
func (e *Engine) ack(ack AckFunc, build func() any) {
	if ack == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Acknowledgment path failed", "panic", r)
			ack(ackFailure{OK: false, Error: "internal error"})
		}
	}()
	ack(build())
}

func toMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	return lo.ToPtr(t.UnixMilli())
}
