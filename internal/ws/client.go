package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ugaemi/duel-arena-server/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Frame is one outbound websocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan Frame

	// limiter caps inbound messages; nil means unlimited.
	limiter   *rate.Limiter
	closeOnce sync.Once
}

// NewClient creates a new Client. Inbound messages are limited to the hub's
// configured rate.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   id,
		Hub:  hub,
		Conn: conn,
		Send: make(chan Frame, sendBuffer),
	}
	if hub != nil && hub.InputRate > 0 {
		c.limiter = rate.NewLimiter(hub.InputRate, hub.InputBurst)
	}
	return c
}

// Allow reports whether another inbound message fits the client's rate.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// ReadPump pumps messages from the WebSocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("websocket read error", "client", c.ID, "error", err)
			}
			break
		}
		if !c.Allow() {
			metrics.RecordMessageDropped("rate_limit")
			continue
		}
		c.Hub.Incoming <- &ClientMessage{Client: c, Data: message}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			kind := websocket.TextMessage
			if frame.Binary {
				kind = websocket.BinaryMessage
			}
			if err := c.Conn.WriteMessage(kind, frame.Data); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage sends a Message to this client as a text frame.
func (c *Client) SendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal message", "error", err)
		return
	}
	c.enqueue(Frame{Data: data})
}

// SendBinary sends raw bytes as a binary frame.
func (c *Client) SendBinary(data []byte) {
	c.enqueue(Frame{Binary: true, Data: data})
}

// enqueue never blocks; frames are dropped while the buffer is full.
func (c *Client) enqueue(f Frame) {
	select {
	case c.Send <- f:
	default:
		metrics.RecordMessageDropped("buffer_full")
		slog.Warn("client send buffer full, dropping message", "client", c.ID)
	}
}

// Close terminates the connection. The read pump then unregisters the client
// through the hub as for any other disconnect.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// ClientMessage wraps a raw message with its source client.
type ClientMessage struct {
	Client *Client
	Data   []byte
}
