package rooms

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lyceum/domain"
)

func TestHistoryStore_Append_Evicts_Oldest_Beyond_Capacity(t *testing.T) {
	req := require.New(t)
	store := NewHistoryStore(100)

	// When 101 sequential messages arrive in the room
	for i := 1; i <= 101; i++ {
		store.Append("r2", domain.NewMessage("p1", "alice", fmt.Sprintf("msg-%d", i), time.Now()))
	}

	// Then the buffer holds 100 messages and message #1 was evicted first
	buf := store.Get("r2")
	req.Len(buf, 100)
	req.Equal("msg-2", buf[0].Content)
	req.Equal("msg-101", buf[99].Content)
}

func TestHistoryStore_Get_Unknown_Room_Returns_Nil(t *testing.T) {
	store := NewHistoryStore(100)
	require.Nil(t, store.Get("nope"))
}

func TestHistoryStore_Get_Returns_A_Copy(t *testing.T) {
	req := require.New(t)
	store := NewHistoryStore(100)
	store.Append("r1", domain.NewMessage("p1", "alice", "hi", time.Now()))

	buf := store.Get("r1")
	buf[0].Content = "mutated"

	req.Equal("hi", store.Get("r1")[0].Content)
}

func TestHistoryStore_Drop_Removes_Buffer(t *testing.T) {
	req := require.New(t)
	store := NewHistoryStore(100)
	store.Append("r1", domain.NewMessage("p1", "alice", "hi", time.Now()))

	store.Drop("r1")

	req.Nil(store.Get("r1"))
}

func TestHistoryStore_Buffers_Are_Isolated_Per_Room(t *testing.T) {
	req := require.New(t)
	store := NewHistoryStore(2)

	store.Append("r1", domain.NewMessage("p1", "alice", "a", time.Now()))
	store.Append("r2", domain.NewMessage("p2", "bob", "b", time.Now()))
	store.Drop("r1")

	req.Nil(store.Get("r1"))
	req.Len(store.Get("r2"), 1)
}
