package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event within a room.
type Message struct {
	ID       uuid.UUID `json:"id"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Content  string    `json:"message"`
	SentAt   int64     `json:"timestamp"`
}

func NewMessage(userID, username, content string, at time.Time) Message {
	return Message{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		Content:  content,
		SentAt:   at.UnixMilli(),
	}
}
