// Package runtime wires the session event engine, the connection
// registry and the background workers together. It orchestrates the
// system without containing domain rules.
package runtime

import (
	"sync"

	"lyceum/contract"
	"lyceum/domain/event"
)

type Set map[string]struct{}

// Registry maps domain identifiers back to live transport connections.
// It is the only component aware of that mapping; fan-out resolves
// delivery scopes through it and nothing here mutates domain state.
type Registry struct {
	mu        sync.RWMutex
	sinks     map[string]contract.EventSink // connection -> sink
	roomConns map[string]Set                // room -> connections
	connRooms map[string]Set                // connection -> rooms, for cleanup
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:     make(map[string]contract.EventSink),
		roomConns: make(map[string]Set),
		connRooms: make(map[string]Set),
	}
}

// AddSink registers a live connection.
func (r *Registry) AddSink(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[sink.ID()] = sink
}

// RemoveSink drops a connection and every room subscription it held.
func (r *Registry) RemoveSink(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, connID)
	for roomID := range r.connRooms[connID] {
		r.dropFromRoom(roomID, connID)
	}
	delete(r.connRooms, connID)
}

// Subscribe adds a connection to a room's delivery channel.
func (r *Registry) Subscribe(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomConns[roomID]; !ok {
		r.roomConns[roomID] = make(Set)
	}
	r.roomConns[roomID][connID] = struct{}{}

	if _, ok := r.connRooms[connID]; !ok {
		r.connRooms[connID] = make(Set)
	}
	r.connRooms[connID][roomID] = struct{}{}
}

// Unsubscribe removes a connection from a room's delivery channel.
// Empty sets are deleted so the maps don't leak over time.
func (r *Registry) Unsubscribe(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropFromRoom(roomID, connID)
	if rooms, ok := r.connRooms[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.connRooms, connID)
		}
	}
}

// Resolve returns the live sinks a scope reaches. Connections that have
// since disconnected are simply absent from the result.
func (r *Registry) Resolve(scope event.Scope) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch scope.Kind {
	case event.ScopeConn:
		if sink, ok := r.sinks[scope.Conn]; ok {
			return []contract.EventSink{sink}
		}
		return nil
	case event.ScopeAll:
		out := make([]contract.EventSink, 0, len(r.sinks))
		for _, sink := range r.sinks {
			out = append(out, sink)
		}
		return out
	default:
		conns, ok := r.roomConns[scope.Room]
		if !ok {
			return nil
		}
		var out []contract.EventSink
		for connID := range conns {
			if connID == scope.Exclude {
				continue
			}
			if sink, ok := r.sinks[connID]; ok {
				out = append(out, sink)
			}
		}
		return out
	}
}

func (r *Registry) dropFromRoom(roomID, connID string) {
	if conns, ok := r.roomConns[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.roomConns, roomID)
		}
	}
}
