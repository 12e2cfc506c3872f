package domain

// MediaState is an opaque media descriptor forwarded as-is between
// participants (typically {"audio": bool, "video": bool}).
// The engine never interprets its content.
type MediaState map[string]any

// Participant is a user's membership within one room.
// Distinct from global presence: a user may be present without being
// in any room, and vice versa.
type Participant struct {
	UserID   string
	Username string
	Media    MediaState
	// ConnID points back to the live connection. Not owned by the room.
	ConnID string
}

// ParticipantView is the roster snapshot shape sent over the wire.
type ParticipantView struct {
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	Media    MediaState `json:"mediaState"`
}

func (p Participant) View() ParticipantView {
	return ParticipantView{UserID: p.UserID, Username: p.Username, Media: p.Media}
}
