package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lyceum/domain/event"
	"lyceum/presence"
	"lyceum/rooms"
)

type stubAuthenticator struct {
	userID string
	err    error
}

func (a stubAuthenticator) ResolveIdentity(_ context.Context, _ string) (string, error) {
	return a.userID, a.err
}

type engineFixture struct {
	engine    *Engine
	rooms     *rooms.Registry
	history   *rooms.HistoryStore
	directory *presence.Directory
	registry  *Registry
	cancel    context.CancelFunc
}

func newEngineFixture(t *testing.T, auth stubAuthenticator) *engineFixture {
	t.Helper()
	log := slog.Default()
	roomRegistry := rooms.NewRegistry(log)
	history := rooms.NewHistoryStore(100)
	directory := presence.NewDirectory(log)
	registry := NewRegistry()

	engine := NewEngine(log, auth, roomRegistry, history, directory, registry, nil, 256)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = engine.Run(ctx) }()
	t.Cleanup(cancel)

	return &engineFixture{
		engine:    engine,
		rooms:     roomRegistry,
		history:   history,
		directory: directory,
		registry:  registry,
		cancel:    cancel,
	}
}

// flush waits until every previously submitted task has executed, by
// riding the ack of a heartbeat through the same serialized queue.
func (f *engineFixture) flush() {
	done := make(chan struct{})
	f.engine.Dispatch("flush-probe", EventHeartbeat, nil, func(any) { close(done) })
	<-done
}

func (f *engineFixture) drainNotes() []event.Envelope {
	var out []event.Envelope
	for {
		select {
		case env := <-f.engine.Notifications():
			out = append(out, env)
		default:
			return out
		}
	}
}

func (f *engineFixture) dispatch(connID, kind string, payload map[string]any) {
	data, _ := json.Marshal(payload)
	f.engine.Dispatch(connID, kind, data, nil)
}

func TestEngine_Join_With_Colliding_Name_Evicts_Prior_Participant(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})
	ctx := context.Background()

	f.engine.Connect(ctx, Sink{id: "c1"}, "")
	f.engine.Connect(ctx, Sink{id: "c2"}, "")

	// Given alice joined r1 as p1 and chatted
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice",
		"mediaState": map[string]bool{"audio": true, "video": true},
	})
	f.dispatch("c1", EventSendMessage, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice", "message": "hi",
	})
	f.flush()
	f.drainNotes()

	// When a second user joins r1 under the same name
	f.dispatch("c2", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p2", "username": "alice",
		"mediaState": map[string]bool{"audio": true, "video": false},
	})
	f.flush()
	notes := f.drainNotes()

	// Then exactly one eviction precedes the join notification
	evictionIdx, joinIdx := -1, -1
	for i, env := range notes {
		switch n := env.Note.(type) {
		case event.UserDisconnected:
			req.Equal("p1", n.UserID)
			req.Equal("alice", n.Username)
			req.Equal(-1, evictionIdx, "expected a single eviction")
			evictionIdx = i
		case event.UserConnected:
			if n.Room == "r1" {
				req.Equal("p2", n.UserID)
				joinIdx = i
			}
		}
	}
	req.GreaterOrEqual(evictionIdx, 0)
	req.Greater(joinIdx, evictionIdx)

	// And the roster lists only p2
	users := f.rooms.Participants("r1")
	req.Len(users, 1)
	req.Equal("p2", users[0].UserID)
}

func TestEngine_Join_Sends_History_To_The_Joining_Connection_Only(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})
	ctx := context.Background()

	f.engine.Connect(ctx, Sink{id: "c1"}, "")
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice",
	})
	f.flush()

	var history *event.Envelope
	for _, env := range f.drainNotes() {
		if _, ok := env.Note.(event.RoomMessages); ok {
			history = &env
			break
		}
	}
	req.NotNil(history)
	req.Equal(event.ScopeConn, history.Scope.Kind)
	req.Equal("c1", history.Scope.Conn)
}

func TestEngine_Malformed_Join_Is_Dropped_Silently(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.drainNotes()

	// username missing: no state change, no notification
	f.dispatch("c1", EventJoinRoom, map[string]any{"roomId": "r1", "userId": "p1"})
	f.flush()

	req.Zero(f.rooms.RoomCount())
	req.Empty(f.drainNotes())
}

func TestEngine_SendMessage_Is_Room_Scoped_And_Appended_To_History(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice",
	})
	f.flush()
	f.drainNotes()

	f.dispatch("c1", EventSendMessage, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice", "message": "hello",
	})
	f.flush()

	notes := f.drainNotes()
	req.Len(notes, 1)
	received, ok := notes[0].Note.(event.MessageReceived)
	req.True(ok)
	req.Equal("hello", received.Message.Content)
	req.Equal(event.ScopeRoom, notes[0].Scope.Kind)
	req.Equal("r1", notes[0].Scope.Room)

	buf := f.history.Get("r1")
	req.Len(buf, 1)
	req.Equal("hello", buf[0].Content)
}

func TestEngine_History_Keeps_Only_Last_Hundred_Messages(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r2", "userId": "p1", "username": "alice",
	})
	for i := 1; i <= 101; i++ {
		f.dispatch("c1", EventSendMessage, map[string]any{
			"roomId": "r2", "userId": "p1", "username": "alice",
			"message": fmt.Sprintf("msg-%d", i),
		})
	}
	f.flush()

	buf := f.history.Get("r2")
	req.Len(buf, 100)
	req.Equal("msg-2", buf[0].Content)
}

func TestEngine_MediaState_Update_Excludes_Origin_Connection(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice",
	})
	f.flush()
	f.drainNotes()

	f.dispatch("c1", EventMediaState, map[string]any{
		"roomId": "r1", "userId": "p1",
		"mediaState": map[string]bool{"audio": false, "video": true},
	})
	f.flush()

	notes := f.drainNotes()
	req.Len(notes, 1)
	changed, ok := notes[0].Note.(event.MediaStateChanged)
	req.True(ok)
	req.Equal("p1", changed.UserID)
	req.Equal("c1", notes[0].Scope.Exclude)
}

func TestEngine_MediaState_Referential_Miss_Is_NoOp(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.drainNotes()

	f.dispatch("c1", EventMediaState, map[string]any{
		"roomId": "ghost", "userId": "p1",
		"mediaState": map[string]bool{"audio": true},
	})
	f.flush()

	req.Empty(f.drainNotes())
}

func TestEngine_Authenticated_Connect_Creates_Presence(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{userID: "alice"})

	identity := f.engine.Connect(context.Background(), Sink{id: "c1"}, "some-token")
	f.flush()

	req.True(identity.IsAuthenticated())
	req.Equal("alice", identity.UserID)
	req.True(f.directory.StatusOf("alice").Online)

	notes := f.drainNotes()
	req.Len(notes, 1)
	status, ok := notes[0].Note.(event.StatusChanged)
	req.True(ok)
	req.Equal("online", status.Status)
	req.Equal(event.ScopeAll, notes[0].Scope.Kind)
}

func TestEngine_Failed_Resolution_Degrades_To_Anonymous(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{err: fmt.Errorf("bad signature")})

	identity := f.engine.Connect(context.Background(), Sink{id: "c1"}, "broken-token")
	f.flush()

	// The connection is kept, no presence record is created
	req.False(identity.IsAuthenticated())
	req.Equal("c1", identity.UserID)
	req.Zero(f.directory.OnlineCount())
}

func TestEngine_Disconnect_Leaves_Rooms_And_Sets_Offline(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{userID: "alice"})

	f.engine.Connect(context.Background(), Sink{id: "c1"}, "token")
	f.dispatch("c1", EventJoinRoom, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice",
	})
	f.dispatch("c1", EventSendMessage, map[string]any{
		"roomId": "r1", "userId": "p1", "username": "alice", "message": "bye",
	})
	f.flush()
	f.drainNotes()

	f.engine.Disconnect("c1")
	f.flush()

	// Room and history die together, presence flips to offline
	req.Zero(f.rooms.RoomCount())
	req.Nil(f.history.Get("r1"))
	req.False(f.directory.StatusOf("alice").Online)

	var sawLeave, sawOffline bool
	for _, env := range f.drainNotes() {
		switch n := env.Note.(type) {
		case event.UserDisconnected:
			req.Equal("p1", n.UserID)
			sawLeave = true
		case event.StatusChanged:
			req.Equal("offline", n.Status)
			req.NotNil(n.LastSeen)
			sawOffline = true
		}
	}
	req.True(sawLeave)
	req.True(sawOffline)
}

func TestEngine_Heartbeat_Acknowledges_With_Timestamp(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{userID: "alice"})
	f.engine.Connect(context.Background(), Sink{id: "c1"}, "token")

	ackCh := make(chan any, 1)
	f.engine.Dispatch("c1", EventHeartbeat, nil, func(payload any) { ackCh <- payload })

	ack := (<-ackCh).(heartbeatAck)
	req.True(ack.OK)
	req.NotZero(ack.Timestamp)
}

func TestEngine_Heartbeat_Without_Presence_Record_Reports_Failure(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})
	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")

	ackCh := make(chan any, 1)
	f.engine.Dispatch("c1", EventHeartbeat, nil, func(payload any) { ackCh <- payload })

	ack := (<-ackCh).(heartbeatAck)
	req.False(ack.OK)
}

func TestEngine_GetOnlineUsers_Acknowledges_With_Directory_Snapshot(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{userID: "alice"})
	f.engine.Connect(context.Background(), Sink{id: "c1"}, "token")

	ackCh := make(chan any, 1)
	f.engine.Dispatch("c1", EventOnlineUsers, nil, func(payload any) { ackCh <- payload })

	ack := (<-ackCh).(onlineUsersAck)
	req.Equal([]string{"alice"}, ack.Users)
}

func TestEngine_GetUserStatus_Acknowledges(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{userID: "alice"})
	f.engine.Connect(context.Background(), Sink{id: "c1"}, "token")

	ackCh := make(chan any, 1)
	data, _ := json.Marshal(map[string]any{"userId": "alice"})
	f.engine.Dispatch("c1", EventUserStatus, data, func(payload any) { ackCh <- payload })

	ack := (<-ackCh).(userStatusAck)
	req.Equal("alice", ack.UserID)
	req.True(ack.Status.Online)
	req.Nil(ack.Status.LastSeen)
}

func TestEngine_Sweep_Expires_Stale_Records_And_Notifies_All(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.directory.WithClock(func() time.Time { return start })
	f.engine.WithClock(func() time.Time { return start.Add(400 * time.Second) })

	// Given bob's presence record is 400s old
	f.directory.SetOnline("bob", "c9")

	f.engine.ExpireStalePresence(360 * time.Second)
	f.flush()

	req.False(f.directory.StatusOf("bob").Online)

	notes := f.drainNotes()
	req.Len(notes, 1)
	status := notes[0].Note.(event.StatusChanged)
	req.Equal("bob", status.UserID)
	req.Equal("offline", status.Status)
	req.Equal(event.ScopeAll, notes[0].Scope.Kind)
}

func TestEngine_Ack_Panic_Becomes_Structured_Failure(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})

	var got any
	f.engine.ack(func(payload any) { got = payload }, func() any { panic("boom") })

	req.Equal(ackFailure{OK: false, Error: "internal error"}, got)
}

func TestEngine_Unknown_Event_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, stubAuthenticator{})
	f.engine.Connect(context.Background(), Sink{id: "c1"}, "")
	f.drainNotes()

	f.dispatch("c1", "self-destruct", map[string]any{"now": true})
	f.flush()

	req.Empty(f.drainNotes())
}
