package notifications

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 64
)

// Frame event names.
const (
	EventRegister        = "register"
	EventPing            = "ping"
	EventPong            = "pong"
	EventRegistered      = "registered"
	EventError           = "error"
	EventNewNotification = "newNotification"
)

// InboundFrame is what clients send.
type InboundFrame struct {
	Event  string `json:"event"`
	UserID uint   `json:"userId,omitempty"`
}

// OutboundFrame is what the server sends.
type OutboundFrame struct {
	Event   string `json:"event"`
	UserID  uint   `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func encodeFrame(f OutboundFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		// Only Data can fail to encode; report that instead.
		b, _ = json.Marshal(OutboundFrame{Event: EventError, Message: "encode failed"})
	}
	return b
}

// Client is one websocket connection. It belongs to no room until the peer
// sends a register frame naming its authenticated user.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// AuthUserID is the user the connection authenticated as.
	AuthUserID uint

	registry  *Registry
	roomID    uint
	done      chan struct{}
	closeOnce sync.Once
	leaving   chan struct{}
	leaveOnce sync.Once
}

func NewClient(registry *Registry, conn *websocket.Conn, authUserID uint) *Client {
	return &Client{
		ID:         uuid.NewString(),
		Conn:       conn,
		Send:       make(chan []byte, sendBuffer),
		AuthUserID: authUserID,
		registry:   registry,
		done:       make(chan struct{}),
		leaving:    make(chan struct{}),
	}
}

// ReadPump reads frames until the connection fails, then leaves the room.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c)
		c.close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", slog.String("client_id", c.ID), slog.String("error", err.Error()))
			}
			return
		}
		c.handleFrame(message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.leaving:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				slog.Warn("websocket close frame failed", slog.String("client_id", c.ID), slog.String("error", err.Error()))
			}
			return
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// goAway asks WritePump, the connection's only writer, to send a going-away
// close frame and hang up.
func (c *Client) goAway() {
	c.leaveOnce.Do(func() { close(c.leaving) })
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// TrySend queues message without blocking. It reports false when the buffer
// is full or the client is gone.
func (c *Client) TrySend(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- message:
		return true
	default:
		slog.Warn("websocket buffer full, dropping message", slog.String("client_id", c.ID), slog.Uint64("user_id", uint64(c.AuthUserID)))
		return false
	}
}

func (c *Client) handleFrame(raw []byte) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.TrySend(encodeFrame(OutboundFrame{Event: EventError, Message: "invalid frame"}))
		return
	}

	switch f.Event {
	case EventRegister:
		if f.UserID == 0 || f.UserID != c.AuthUserID {
			c.TrySend(encodeFrame(OutboundFrame{Event: EventError, Message: "userId does not match the authenticated user"}))
			return
		}
		if err := c.registry.Register(f.UserID, c); err != nil {
			msg := "registration failed"
			if errors.Is(err, ErrUserConnLimit) || errors.Is(err, ErrServerConnLimit) {
				msg = err.Error()
			}
			c.TrySend(encodeFrame(OutboundFrame{Event: EventError, Message: msg}))
			return
		}
		c.TrySend(encodeFrame(OutboundFrame{Event: EventRegistered, UserID: f.UserID}))
	case EventPing:
		c.TrySend(encodeFrame(OutboundFrame{Event: EventPong}))
	default:
		c.TrySend(encodeFrame(OutboundFrame{Event: EventError, Message: "unknown event"}))
	}
}
