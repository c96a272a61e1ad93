package room

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

func TestManager_CreateAndLookup(t *testing.T) {
	m, r := newTestRoom(t, testOptions())

	got, ok := m.GetRoom(r.Code)
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, 1, m.RoomCount())

	_, ok = m.GetRoom("ZZZZZ")
	assert.False(t, ok)

	c := mockClient("c1")
	pid, err := r.join("alice", c)
	require.NoError(t, err)
	found, ok := m.FindRoomByPlayerID(pid)
	require.True(t, ok)
	assert.Same(t, r, found)

	_, ok = m.FindRoomByPlayerID("")
	assert.False(t, ok)

	m.RemoveRoom(r.Code)
	m.RemoveRoom(r.Code)
	assert.Zero(t, m.RoomCount())
}

func TestManager_List(t *testing.T) {
	m := NewManager(testOptions())
	for i := 0; i < 3; i++ {
		_, err := m.newRoom()
		require.NoError(t, err)
	}

	list := m.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Code, list[i].Code)
	}
	for _, info := range list {
		assert.Equal(t, "waiting", info.State)
		assert.Empty(t, info.Players)
		assert.NotEmpty(t, info.MatchID)
	}
}

func TestManager_ArenaError(t *testing.T) {
	opts := testOptions()
	opts.Arena = func() (*arena.Map, error) { return nil, errors.New("bad layout") }
	m := NewManager(opts)

	_, err := m.CreateRoom()
	assert.Error(t, err)
	assert.Zero(t, m.RoomCount())
}

func TestManager_RoomLifecycle(t *testing.T) {
	m := NewManager(testOptions())
	r, err := m.CreateRoom()
	require.NoError(t, err)

	c1, c2 := mockClient("c1"), mockClient("c2")
	p1, err := r.Join("alice", c1)
	require.NoError(t, err)
	p2, err := r.Join("bob", c2)
	require.NoError(t, err)

	_, err = r.Join("carol", mockClient("c3"))
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, r.Leave(p1))
	require.NoError(t, r.Leave(p2))

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not close after everyone left")
	}
	assert.Zero(t, m.RoomCount())

	_, err = r.Join("dave", mockClient("c4"))
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, r.Leave(p1), ErrRoomClosed)
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(testOptions())
	r, err := m.CreateRoom()
	require.NoError(t, err)

	c := mockClient("c1")
	_, err = r.Join("alice", c)
	require.NoError(t, err)

	m.Shutdown()
	assert.Zero(t, m.RoomCount())

	msgs, _ := drain(c)
	closed := findMessageByType(msgs, ws.TypeRoomClosed)
	require.NotNil(t, closed)
	var body roomClosedMessage
	require.NoError(t, json.Unmarshal(closed.Data, &body))
	assert.Equal(t, "shutdown", body.Reason)
}
