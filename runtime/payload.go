package runtime

import "lyceum/domain"

// Inbound event names.
const (
	EventJoinRoom     = "join-room"
	EventMediaState   = "media-state-changed"
	EventSendMessage  = "send-message"
	EventUpdateStatus = "update-status"
	EventHeartbeat    = "heartbeat"
	EventUserStatus   = "get-user-status"
	EventOnlineUsers  = "get-online-users"
)

type joinRoomPayload struct {
	RoomID   string            `json:"roomId" validate:"required"`
	UserID   string            `json:"userId" validate:"required"`
	Username string            `json:"username" validate:"required"`
	Media    domain.MediaState `json:"mediaState"`
}

type mediaStatePayload struct {
	RoomID string            `json:"roomId" validate:"required"`
	UserID string            `json:"userId" validate:"required"`
	Media  domain.MediaState `json:"mediaState" validate:"required"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

type updateStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=online offline"`
}

type userStatusPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type heartbeatAck struct {
	OK        bool  `json:"ok"`
	Timestamp int64 `json:"timestamp"`
}

type userStatusAck struct {
	UserID string        `json:"userId"`
	Status domain.Status `json:"status"`
}

type onlineUsersAck struct {
	Users []string `json:"users"`
}

type ackFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
