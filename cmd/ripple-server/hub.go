package main

import (
	"log"

	"Ripple/pkg/protocol"
)

// hub routes frames between connected clients. Its run loop is the only
// goroutine that touches the client set, so the set needs no locking.
type hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	inbound    chan inboundFrame
}

type inboundFrame struct {
	from  *client
	frame protocol.Frame
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan inboundFrame),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.broadcast(protocol.UserStatusFrame{UserID: c.userID, Status: "online"}, c)
			h.broadcastOnlineUsers()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.broadcast(protocol.UserStatusFrame{UserID: c.userID, Status: "offline"}, nil)
				h.broadcastOnlineUsers()
			}

		case in := <-h.inbound:
			h.route(in)
		}
	}
}

// route stamps the sending client's identity onto the frame and fans it out
// to the other clients. The sender already applied its own action locally,
// so it never gets a copy back.
func (h *hub) route(in inboundFrame) {
	switch f := in.frame.(type) {
	case protocol.PingFrame:
		in.from.deliver(protocol.PongFrame{})

	case protocol.MessageFrame:
		f.Sender = in.from.userID
		h.broadcast(f, in.from)

	case protocol.TypingFrame:
		f.UserID = in.from.userID
		h.broadcast(f, in.from)

	case protocol.ReactionFrame:
		f.UserID = in.from.userID
		h.broadcast(f, in.from)

	default:
		log.Printf("dropping %s frame from %s", in.frame.FrameType(), in.from.userID)
	}
}

// broadcast fans a frame out to every client except the excluded one.
func (h *hub) broadcast(frame protocol.Frame, except *client) {
	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("encode error: %v", err)
		return
	}
	for c := range h.clients {
		if c == except {
			continue
		}
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *hub) broadcastOnlineUsers() {
	users := make([]string, 0, len(h.clients))
	for c := range h.clients {
		users = append(users, c.userID)
	}
	h.broadcast(protocol.OnlineUsersFrame{Users: users}, nil)
}
