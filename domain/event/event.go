// Package event defines outbound notifications and their delivery scopes.
// Notifications describe state changes that already happened; consuming
// them must never mutate domain state.
package event

import "lyceum/domain"

// Notification is an outbound state-change event.
// Kind is the wire event name delivered to clients.
type Notification interface {
	Kind() string
}

type ScopeKind int

const (
	// ScopeRoom delivers to every connection subscribed to a room,
	// minus an optional excluded connection.
	ScopeRoom ScopeKind = iota
	// ScopeAll delivers to every live connection.
	ScopeAll
	// ScopeConn delivers to a single connection.
	ScopeConn
)

// Scope selects the set of live connections a notification reaches.
type Scope struct {
	Kind    ScopeKind
	Room    string
	Conn    string
	Exclude string
}

func ToRoom(roomID string) Scope {
	return Scope{Kind: ScopeRoom, Room: roomID}
}

func ToRoomExcept(roomID, connID string) Scope {
	return Scope{Kind: ScopeRoom, Room: roomID, Exclude: connID}
}

func ToAll() Scope {
	return Scope{Kind: ScopeAll}
}

func ToConn(connID string) Scope {
	return Scope{Kind: ScopeConn, Conn: connID}
}

// Envelope pairs a notification with its delivery scope.
// This is what travels on the fan-out channel.
type Envelope struct {
	Scope Scope
	Note  Notification
}

type UserConnected struct {
	Room     string            `json:"roomId"`
	UserID   string            `json:"userId"`
	Username string            `json:"username"`
	Media    domain.MediaState `json:"mediaState"`
}

func (UserConnected) Kind() string { return "user-connected" }

type UserDisconnected struct {
	Room     string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserDisconnected) Kind() string { return "user-disconnected" }

type RoomUsers struct {
	Room  string                   `json:"roomId"`
	Users []domain.ParticipantView `json:"users"`
}

func (RoomUsers) Kind() string { return "room-users" }

type RoomMessages struct {
	Room     string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
}

func (RoomMessages) Kind() string { return "room-messages" }

type MediaStateChanged struct {
	Room   string            `json:"roomId"`
	UserID string            `json:"userId"`
	Media  domain.MediaState `json:"mediaState"`
}

func (MediaStateChanged) Kind() string { return "media-state-changed" }

type MessageReceived struct {
	Room    string         `json:"roomId"`
	Message domain.Message `json:"message"`
}

func (MessageReceived) Kind() string { return "receive-message" }

type StatusChanged struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	LastSeen *int64 `json:"lastSeen,omitempty"`
}

func (StatusChanged) Kind() string { return "status-changed" }
