package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"Ripple/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Development server: accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is the middleman between one websocket connection and the hub.
type client struct {
	hub    *hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// deliver queues a frame for this client only.
func (c *client) deliver(frame protocol.Frame) {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("encode error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump pumps decoded frames from the websocket to the hub. Frames that
// fail to decode are logged and discarded without closing the connection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", c.userID, err)
			}
			break
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			log.Printf("discarding frame from %s: %v", c.userID, err)
			continue
		}
		c.hub.inbound <- inboundFrame{from: c, frame: frame}
	}
}

// writePump pumps queued frames to the websocket connection.
func (c *client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// serveWs upgrades an HTTP request to a websocket session. The identity is
// taken from the userId query parameter set at open time.
func serveWs(h *hub, w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	c := &client{hub: h, userID: userID, conn: conn, send: make(chan []byte, 256)}
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}
