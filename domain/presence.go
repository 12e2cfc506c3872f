package domain

// Status is the answer to a presence query.
// LastSeen is nil while the user is online, and nil for users
// that were never seen at all.
type Status struct {
	Online   bool   `json:"online"`
	LastSeen *int64 `json:"lastSeen"`
}

func OnlineStatus() Status {
	return Status{Online: true}
}

func OfflineStatus(lastSeen *int64) Status {
	return Status{Online: false, LastSeen: lastSeen}
}
