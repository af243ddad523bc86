package ws

import (
	"fmt"
	"sync"
	"time"

	"Ripple/pkg/logging"
	"Ripple/pkg/protocol"
)

// State is the connection manager's lifecycle state. It is owned
// exclusively by the Conn and is never persisted.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateFailed is terminal until an explicit Connect call resets it.
	StateFailed State = "failed"
)

const (
	defaultHeartbeatInterval    = 30 * time.Second
	defaultReconnectDelay       = 3 * time.Second
	defaultMaxReconnectAttempts = 5
)

// Dispatcher receives decoded inbound frames. It is implemented by the
// session's HandleFrame entry point; the connection manager never touches
// chat state directly.
type Dispatcher interface {
	HandleFrame(frame protocol.Frame)
}

// Options configures a Conn. The zero values of the tuning knobs select the
// reference behavior: a 30s heartbeat, a fixed 3s reconnect delay, and 5
// reconnect attempts before giving up.
type Options struct {
	// URL of the chat server endpoint, e.g. "ws://host:8080/ws".
	URL string

	// Dialer opens channels. Defaults to WebSocketDialer.
	Dialer Dialer

	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// OnStateChange, when set, observes every state transition. Invoked
	// sequentially, never concurrently.
	OnStateChange func(State)
}

// Conn manages the lifecycle of a single channel: connect, heartbeat,
// reconnect with a bounded fixed delay, teardown. Outbound intents against
// a channel that is not open are dropped with a warning, never queued.
type Conn struct {
	opts       Options
	dispatcher Dispatcher
	logger     *logging.Logger

	mu         sync.Mutex
	state      State
	attempts   int
	identityID string
	ch         Channel
	done       chan struct{}
	// gen invalidates callbacks from dials, readers, and timers that
	// belong to an abandoned connection attempt.
	gen uint64

	notifyMu sync.Mutex
}

// NewConn creates a connection manager in the disconnected state.
func NewConn(opts Options, dispatcher Dispatcher) *Conn {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}

	c := &Conn{
		opts:       opts,
		dispatcher: dispatcher,
		state:      StateDisconnected,
	}
	if logger, err := logging.GetLogger("connection"); err == nil {
		c.logger = logger
	}
	return c
}

func (c *Conn) log(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setStateLocked mutates the state; the caller must notify after releasing
// c.mu when the returned value is true.
func (c *Conn) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Conn) notifyState(s State) {
	if c.opts.OnStateChange == nil {
		return
	}
	c.notifyMu.Lock()
	c.opts.OnStateChange(s)
	c.notifyMu.Unlock()
}

// Connect opens a new channel for the given identity. Establishment failure
// is observed asynchronously through the reconnect policy, never returned
// here. An explicit Connect also resets the terminal failed state.
func (c *Conn) Connect(identityID string) {
	c.mu.Lock()
	c.identityID = identityID
	c.teardownLocked()
	c.gen++
	gen := c.gen
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if changed {
		c.notifyState(StateConnecting)
	}
	go c.dial(gen, identityID)
}

// dial opens the channel and installs it unless the attempt has been
// superseded in the meantime.
func (c *Conn) dial(gen uint64, identityID string) {
	target, err := connectURL(c.opts.URL, identityID)
	if err != nil {
		c.log("Conn: %v", err)
		c.dialFailed(gen)
		return
	}

	ch, err := c.opts.Dialer.Dial(target)
	if err != nil {
		c.log("Conn: connection error: %v", err)
		c.dialFailed(gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		ch.Close()
		return
	}
	c.ch = ch
	c.done = make(chan struct{})
	c.attempts = 0
	changed := c.setStateLocked(StateConnected)
	done := c.done
	c.mu.Unlock()

	c.log("Conn: connected")
	if changed {
		c.notifyState(StateConnected)
	}
	go c.readLoop(gen, ch)
	go c.heartbeat(done)
}

func (c *Conn) dialFailed(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	next := c.scheduleReconnectLocked()
	c.mu.Unlock()

	if next != "" {
		c.notifyState(next)
	}
}

// readLoop pumps inbound frames until the channel dies. Malformed payloads
// and unknown frame kinds are logged and discarded; they never close the
// channel. Pong frames acknowledge the heartbeat and need no dispatch.
func (c *Conn) readLoop(gen uint64, ch Channel) {
	for {
		data, err := ch.ReadFrame()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.log("Conn: discarding inbound frame: %v", err)
			continue
		}
		if _, ok := frame.(protocol.PongFrame); ok {
			continue
		}
		if c.dispatcher != nil {
			c.dispatcher.HandleFrame(frame)
		}
	}
}

// handleClosed runs the reconnect policy after a channel close or error,
// unless the closure was a deliberate Disconnect or belongs to a superseded
// connection.
func (c *Conn) handleClosed(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.log("Conn: channel closed: %v", err)
	c.teardownLocked()
	next := c.scheduleReconnectLocked()
	c.mu.Unlock()

	if next != "" {
		c.notifyState(next)
	}
}

// scheduleReconnectLocked applies the bounded fixed-delay retry policy.
// Returns the state to notify, or "" when unchanged. Caller holds c.mu.
func (c *Conn) scheduleReconnectLocked() State {
	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.log("Conn: max reconnection attempts reached")
		if c.setStateLocked(StateFailed) {
			return StateFailed
		}
		return ""
	}

	changed := c.setStateLocked(StateReconnecting)
	gen := c.gen
	identityID := c.identityID

	time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		if c.gen != gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.attempts++
		c.gen++
		nextGen := c.gen
		attempt := c.attempts
		notify := c.setStateLocked(StateConnecting)
		c.mu.Unlock()

		c.log("Conn: attempting to reconnect (%d/%d)", attempt, c.opts.MaxReconnectAttempts)
		if notify {
			c.notifyState(StateConnecting)
		}
		go c.dial(nextGen, identityID)
	})

	if changed {
		return StateReconnecting
	}
	return ""
}

// Send serializes one outbound intent and writes it if connected; otherwise
// the frame is dropped with a warning. There is no queueing and no retry.
func (c *Conn) Send(frame protocol.Frame) {
	c.mu.Lock()
	ch := c.ch
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || ch == nil {
		c.log("Conn: not connected, dropping %s frame", frame.FrameType())
		return
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		c.log("Conn: failed to encode %s frame: %v", frame.FrameType(), err)
		return
	}
	if err := ch.WriteFrame(data); err != nil {
		// The read loop observes the closure and drives recovery.
		c.log("Conn: write failed: %v", err)
	}
}

// heartbeat emits a liveness frame on a fixed interval while the connection
// it belongs to is alive. It does not detect missed pongs; a dead channel
// surfaces through the read loop.
func (c *Conn) heartbeat(done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Send(protocol.PingFrame{})
		case <-done:
			return
		}
	}
}

// teardownLocked stops the heartbeat and closes the channel if open.
// Caller holds c.mu.
func (c *Conn) teardownLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.ch != nil {
		c.ch.Close()
		c.ch = nil
	}
}

// Disconnect stops the heartbeat, closes the channel, clears the attempt
// counter, and settles in the disconnected state. Safe to call repeatedly.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.attempts = 0
	c.teardownLocked()
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if changed {
		c.notifyState(StateDisconnected)
	}
}
