package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeRoomInfo, map[string]string{"code": "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, TypeRoomInfo, msg.Type)
	assert.JSONEq(t, `{"code":"ABCD"}`, string(msg.Data))

	_, err = NewMessage(TypeRoomInfo, make(chan int))
	assert.Error(t, err)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("room is full")
	assert.Equal(t, TypeError, msg.Type)

	var em ErrorMessage
	require.NoError(t, json.Unmarshal(msg.Data, &em))
	assert.Equal(t, "room is full", em.Message)
}

func TestClient_Frames(t *testing.T) {
	c := NewClient("c1", NewHub(), nil)

	msg, err := NewMessage(TypeRoomClosed, nil)
	require.NoError(t, err)
	c.SendMessage(msg)
	c.SendBinary([]byte{1, 2, 3})

	text := <-c.Send
	assert.False(t, text.Binary)
	var got Message
	require.NoError(t, json.Unmarshal(text.Data, &got))
	assert.Equal(t, TypeRoomClosed, got.Type)

	bin := <-c.Send
	assert.True(t, bin.Binary)
	assert.Equal(t, []byte{1, 2, 3}, bin.Data)
}

func TestClient_DropsWhenFull(t *testing.T) {
	c := &Client{ID: "slow", Send: make(chan Frame, 1)}
	c.SendBinary([]byte{1})
	c.SendBinary([]byte{2})

	require.Len(t, c.Send, 1)
	assert.Equal(t, []byte{1}, (<-c.Send).Data)
}

func TestClient_Allow(t *testing.T) {
	tests := []struct {
		name    string
		rate    rate.Limit
		burst   int
		allowed int
	}{
		{"unlimited", 0, 0, 50},
		{"burst of three", rate.Every(time.Hour), 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub()
			hub.InputRate = tt.rate
			hub.InputBurst = tt.burst
			c := NewClient("c", hub, nil)

			n := 0
			for i := 0; i < 50; i++ {
				if c.Allow() {
					n++
				}
			}
			assert.Equal(t, tt.allowed, n)
		})
	}
}

func TestClient_CloseWithoutConn(t *testing.T) {
	c := &Client{ID: "c"}
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	disconnected := make(chan string, 1)
	hub.OnDisconnect = func(c *Client) { disconnected <- c.ID }
	go hub.Run()

	a := &Client{ID: "a", Send: make(chan Frame, 4)}
	b := &Client{ID: "b", Send: make(chan Frame, 4)}
	hub.Register <- a
	hub.Register <- b
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Unregister <- a
	assert.Equal(t, "a", <-disconnected)
	assert.Equal(t, 1, hub.ClientCount())

	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_Incoming(t *testing.T) {
	hub := NewHub()
	got := make(chan string, 1)
	hub.OnMessage = func(cm *ClientMessage) { got <- string(cm.Data) }
	go hub.Run()

	hub.Incoming <- &ClientMessage{Client: &Client{ID: "x"}, Data: []byte("ping")}
	select {
	case s := <-got:
		assert.Equal(t, "ping", s)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}
