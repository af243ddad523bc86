// Package ws implements the connection manager: it owns one duplex framed
// channel to the chat server, keeps it alive with heartbeats, recovers it
// with a bounded fixed-delay reconnect policy, and dispatches decoded
// inbound frames to the session.
package ws

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Channel is one duplex, message-framed connection. The connection manager
// treats it as an opaque capability: liveness detection is purely "did a
// read fail", which is the channel's responsibility to surface.
type Channel interface {
	// ReadFrame blocks until one inbound frame arrives or the channel dies.
	ReadFrame() ([]byte, error)

	// WriteFrame sends one frame.
	WriteFrame(data []byte) error

	// Close tears the channel down. Any blocked ReadFrame returns an error.
	Close() error
}

// Dialer opens a Channel to the given target.
type Dialer interface {
	Dial(target string) (Channel, error)
}

// WebSocketDialer opens websocket channels with gorilla's default dialer.
type WebSocketDialer struct{}

// Dial connects to the server and wraps the connection as a Channel.
func (WebSocketDialer) Dial(target string) (Channel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &wsChannel{conn: conn}, nil
}

// wsChannel adapts *websocket.Conn to the Channel interface. Frames travel
// as text messages, one JSON object each.
type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsChannel) WriteFrame(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsChannel) Close() error {
	return c.conn.Close()
}

// connectURL appends the identity id to the server URL as the userId query
// parameter the server expects at open time.
func connectURL(base, identityID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	q := u.Query()
	q.Set("userId", identityID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
