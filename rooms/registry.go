// Package rooms owns room membership and per-room chat history.
// Rooms are created on first join and destroyed when the last
// participant leaves; history buffers share the room's lifetime.
package rooms

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"lyceum/domain"
)

// room keeps its members in insertion order so roster snapshots are stable.
type room struct {
	order   []string
	members map[string]*domain.Participant
}

func newRoom() *room {
	return &room{members: make(map[string]*domain.Participant)}
}

type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[string]*room
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log, rooms: make(map[string]*room)}
}

// JoinResult reports what a join did: the participant evicted over a
// display-name collision (if any) and the roster after insertion.
type JoinResult struct {
	Evicted *domain.Participant
	Users   []domain.ParticipantView
}

// Departure reports one removal performed by LeaveByConn.
// Emptied is true when the removal destroyed the room.
type Departure struct {
	Room        string
	Participant domain.Participant
	Emptied     bool
}

// Join inserts a participant, creating the room if absent.
// Display names are unique within a room: the upstream identity system
// does not guarantee them across reconnects, so a colliding name means
// a stale entry and the prior holder is evicted before insertion.
func (r *Registry) Join(roomID string, p domain.Participant) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom()
		r.rooms[roomID] = rm
	}

	var evicted *domain.Participant
	for _, id := range rm.order {
		member := rm.members[id]
		if member.Username == p.Username {
			evicted = member
			rm.remove(id)
			r.log.Debug("Evicted stale participant over name collision",
				"room", roomID, "participant", id, "username", p.Username)
			break
		}
	}

	if _, exists := rm.members[p.UserID]; exists {
		// Same participant rejoining without a name collision: replace in place.
		rm.members[p.UserID] = &p
	} else {
		rm.order = append(rm.order, p.UserID)
		rm.members[p.UserID] = &p
	}

	return JoinResult{Evicted: evicted, Users: rm.views()}
}

// UpdateMedia replaces the stored media state of a participant.
// A miss on either the room or the participant is a no-op.
func (r *Registry) UpdateMedia(roomID, userID string, media domain.MediaState) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.Participant{}, false
	}
	member, ok := rm.members[userID]
	if !ok {
		return domain.Participant{}, false
	}
	member.Media = media
	return *member, true
}

// LeaveByConn removes every participant bound to the given connection.
// A connection holds at most one participant per room, but the scan
// covers all rooms to flush stale entries. Emptied rooms are destroyed.
func (r *Registry) LeaveByConn(connID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []Departure
	for roomID, rm := range r.rooms {
		for _, id := range rm.order {
			member := rm.members[id]
			if member.ConnID != connID {
				continue
			}
			rm.remove(id)
			emptied := len(rm.members) == 0
			if emptied {
				delete(r.rooms, roomID)
			}
			departures = append(departures, Departure{
				Room:        roomID,
				Participant: *member,
				Emptied:     emptied,
			})
			break
		}
	}
	return departures
}

// Participants returns an insertion-ordered roster snapshot,
// or nil if the room does not exist.
func (r *Registry) Participants(roomID string) []domain.ParticipantView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.views()
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ParticipantCount returns the total number of participants across all rooms.
func (r *Registry) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, rm := range r.rooms {
		total += len(rm.members)
	}
	return total
}

func (rm *room) remove(userID string) {
	delete(rm.members, userID)
	rm.order = lo.Without(rm.order, userID)
}

func (rm *room) views() []domain.ParticipantView {
	return lo.Map(rm.order, func(id string, _ int) domain.ParticipantView {
		return rm.members[id].View()
	})
}
