package rooms

import (
	"sync"

	"lyceum/domain"
)

// DefaultHistoryLimit bounds each room's message buffer.
const DefaultHistoryLimit = 100

// HistoryStore keeps a bounded FIFO message buffer per room.
// Buffers are created lazily on first append and dropped exactly when
// the owning room is destroyed. Nothing survives a process restart.
type HistoryStore struct {
	mu      sync.RWMutex
	limit   int
	buffers map[string][]domain.Message
}

func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryStore{limit: limit, buffers: make(map[string][]domain.Message)}
}

// Append adds a message at the tail, evicting the oldest entry
// once the buffer exceeds its capacity.
func (h *HistoryStore) Append(roomID string, msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := append(h.buffers[roomID], msg)
	if len(buf) > h.limit {
		buf = buf[len(buf)-h.limit:]
	}
	h.buffers[roomID] = buf
}

// Get returns a copy of the room's buffer in send order.
// An unknown room yields nil.
func (h *HistoryStore) Get(roomID string) []domain.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buf, ok := h.buffers[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(buf))
	copy(out, buf)
	return out
}

// Drop removes the buffer entirely. Called when the room is destroyed.
func (h *HistoryStore) Drop(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.buffers, roomID)
}
