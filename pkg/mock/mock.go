// Package mock provides an in-memory transport that impersonates a small
// chat server, for offline demos and tests. The simulated peers come online,
// type, chat, and change presence without any network.
package mock

import (
	cryptoRand "crypto/rand"
	"math/big"
	"sync"
	"time"

	"Ripple/pkg/models"
	"Ripple/pkg/protocol"
	"Ripple/pkg/ws"
)

var peers = []string{"nora", "sam", "lena", "viktor"}

var loremIpsum = []string{
	"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
	"Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris.",
	"Duis aute irure dolor in reprehenderit in voluptate velit esse.",
	"Excepteur sint occaecat cupidatat non proident, sunt in culpa.",
}

var presences = []models.Presence{
	models.PresenceOnline,
	models.PresenceAway,
	models.PresenceBusy,
	models.PresenceOffline,
}

func secureRandInt(upperBound int) int {
	if upperBound <= 0 {
		return 0
	}
	n, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(int64(upperBound)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// Dialer hands out channels connected to the simulated server.
type Dialer struct {
	// Interval between simulated peer events. Defaults to 2s.
	Interval time.Duration
}

// Dial starts a fresh simulation and returns its client-side channel.
func (d Dialer) Dial(target string) (ws.Channel, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ch := &channel{
		in:   make(chan []byte, 64),
		stop: make(chan struct{}),
	}
	go ch.run(interval)
	return ch, nil
}

// channel is the client-side endpoint of the simulation.
type channel struct {
	mu     sync.Mutex
	in     chan []byte
	closed bool
	stop   chan struct{}
}

func (c *channel) ReadFrame() ([]byte, error) {
	data, ok := <-c.in
	if !ok {
		return nil, errClosed
	}
	return data, nil
}

// WriteFrame consumes client output. The simulated server acknowledges
// heartbeats and swallows everything else.
func (c *channel) WriteFrame(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errClosed
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		return nil // a real server would log and discard; so do we
	}
	if _, ok := frame.(protocol.PingFrame); ok {
		c.deliver(protocol.PongFrame{})
	}
	return nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.stop)
		close(c.in)
	}
	return nil
}

func (c *channel) deliver(frame protocol.Frame) {
	data, err := protocol.Encode(frame)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.in <- data:
	default:
		// Slow client, drop the event.
	}
}

// run plays the peer script: an initial roster and presence snapshot, then
// a steady trickle of presence changes and typed-out messages.
func (c *channel) run(interval time.Duration) {
	for _, peer := range peers {
		c.deliver(protocol.UserStatusFrame{UserID: peer, Status: models.PresenceOnline})
	}
	c.deliver(protocol.OnlineUsersFrame{Users: append([]string(nil), peers...)})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.step()
		case <-c.stop:
			return
		}
	}
}

func (c *channel) step() {
	peer := peers[secureRandInt(len(peers))]
	switch secureRandInt(3) {
	case 0:
		c.deliver(protocol.UserStatusFrame{UserID: peer, Status: presences[secureRandInt(len(presences))]})
	default:
		c.deliver(protocol.TypingFrame{UserID: peer, IsTyping: true})
		c.deliver(protocol.MessageFrame{
			Content:     loremIpsum[secureRandInt(len(loremIpsum))],
			Sender:      peer,
			MessageType: models.MessageText,
		})
		c.deliver(protocol.TypingFrame{UserID: peer, IsTyping: false})
	}
}

type channelError string

func (e channelError) Error() string { return string(e) }

const errClosed = channelError("mock channel closed")
