package ws

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Ripple/pkg/models"
	"Ripple/pkg/protocol"
)

// fakeChannel is an in-memory Channel fed by the test.
type fakeChannel struct {
	in      chan []byte
	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{in: make(chan []byte, 16)}
}

func (c *fakeChannel) ReadFrame() ([]byte, error) {
	data, ok := <-c.in
	if !ok {
		return nil, errors.New("channel closed")
	}
	return data, nil
}

func (c *fakeChannel) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed channel")
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.in)
	}
	return nil
}

// push delivers an inbound wire frame to the reader.
func (c *fakeChannel) push(t *testing.T, frame protocol.Frame) {
	t.Helper()
	data, err := protocol.Encode(frame)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	c.pushRaw(data)
}

func (c *fakeChannel) pushRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.in <- data
	}
}

func (c *fakeChannel) frames(t *testing.T) []protocol.Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Frame, 0, len(c.written))
	for _, data := range c.written {
		f, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("Conn wrote an undecodable frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

// fakeDialer fails a configurable number of leading dials, then hands out
// fake channels.
type fakeDialer struct {
	mu        sync.Mutex
	failFirst int
	targets   []string
	channels  []*fakeChannel
}

func (d *fakeDialer) Dial(target string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target)
	if len(d.targets) <= d.failFirst {
		return nil, fmt.Errorf("dial %s: connection refused", target)
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.targets)
}

func (d *fakeDialer) lastChannel() *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

// recorder collects dispatched frames.
type recorder struct {
	mu     sync.Mutex
	frames []protocol.Frame
}

func (r *recorder) HandleFrame(f protocol.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) all() []protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Frame(nil), r.frames...)
}

func testOptions(d Dialer) Options {
	return Options{
		URL:               "ws://example.test/ws",
		Dialer:            d,
		HeartbeatInterval: time.Hour, // irrelevant unless a test shortens it
		ReconnectDelay:    time.Millisecond,
	}
}

func waitForState(t *testing.T, c *Conn, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state %q, still %q", want, c.State())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestConnect_PassesIdentityAsQueryParam(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConn(testOptions(dialer), nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	if got := dialer.targets[0]; !strings.Contains(got, "userId=alice") {
		t.Errorf("Expected userId query parameter, dialed %q", got)
	}
}

func TestInitialState(t *testing.T) {
	c := NewConn(testOptions(&fakeDialer{}), nil)
	if c.State() != StateDisconnected {
		t.Errorf("Expected initial state disconnected, got %q", c.State())
	}
}

func TestReconnect_BoundReachesFailed(t *testing.T) {
	dialer := &fakeDialer{failFirst: 1 << 30} // never succeeds
	c := NewConn(testOptions(dialer), nil)

	c.Connect("alice")
	waitForState(t, c, StateFailed)

	// Initial dial plus exactly MaxReconnectAttempts retries.
	if got := dialer.dialCount(); got != 6 {
		t.Errorf("Expected 6 dial attempts before failed, got %d", got)
	}

	// Terminal: no further attempts without an explicit Connect.
	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 6 {
		t.Errorf("Failed state must stop retrying, saw %d dials", got)
	}
}

func TestReconnect_SuccessfulOpenResetsCounter(t *testing.T) {
	dialer := &fakeDialer{failFirst: 2}
	c := NewConn(testOptions(dialer), nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 0 {
		t.Errorf("Expected attempt counter reset to 0 after open, got %d", attempts)
	}
	if got := dialer.dialCount(); got != 3 {
		t.Errorf("Expected success on the 3rd dial, got %d dials", got)
	}
}

func TestFailed_ExplicitConnectRecovers(t *testing.T) {
	dialer := &fakeDialer{failFirst: 6}
	c := NewConn(testOptions(dialer), nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateFailed)

	c.Connect("alice")
	waitForState(t, c, StateConnected)
}

func TestChannelClose_TriggersReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConn(testOptions(dialer), nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	dialer.lastChannel().Close()

	waitFor(t, "redial", func() bool { return dialer.dialCount() == 2 })
	waitForState(t, c, StateConnected)
}

func TestSend_DroppedWhileNotConnected(t *testing.T) {
	dialer := &fakeDialer{failFirst: 1 << 30}
	c := NewConn(testOptions(dialer), nil)

	// Must not panic, must not queue.
	c.Send(protocol.MessageFrame{Content: "hi", Sender: "alice", MessageType: models.MessageText})

	c.Connect("alice")
	waitForState(t, c, StateFailed)
	c.Send(protocol.TypingFrame{UserID: "alice", IsTyping: true})
}

func TestSend_WritesWireFrame(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConn(testOptions(dialer), nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	c.Send(protocol.MessageFrame{Content: "hi", Sender: "alice", MessageType: models.MessageText})

	ch := dialer.lastChannel()
	waitFor(t, "frame write", func() bool { return len(ch.frames(t)) == 1 })
	mf, ok := ch.frames(t)[0].(protocol.MessageFrame)
	if !ok || mf.Content != "hi" {
		t.Errorf("Unexpected wire frame: %+v", ch.frames(t)[0])
	}
}

func TestInboundFrames_DispatchedInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	rec := &recorder{}
	c := NewConn(testOptions(dialer), rec)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	ch := dialer.lastChannel()
	ch.push(t, protocol.UserStatusFrame{UserID: "bob", Status: models.PresenceOnline})
	ch.push(t, protocol.OnlineUsersFrame{Users: []string{"bob"}})
	ch.push(t, protocol.ReactionFrame{MessageID: 7, Reaction: models.ReactionLikes, UserID: "bob"})

	waitFor(t, "dispatch", func() bool { return len(rec.all()) == 3 })
	got := rec.all()
	if _, ok := got[0].(protocol.UserStatusFrame); !ok {
		t.Errorf("Expected user_status first, got %T", got[0])
	}
	if _, ok := got[1].(protocol.OnlineUsersFrame); !ok {
		t.Errorf("Expected online_users second, got %T", got[1])
	}
	if _, ok := got[2].(protocol.ReactionFrame); !ok {
		t.Errorf("Expected reaction third, got %T", got[2])
	}
}

func TestInbound_PongIsNotDispatched(t *testing.T) {
	dialer := &fakeDialer{}
	rec := &recorder{}
	c := NewConn(testOptions(dialer), rec)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	ch := dialer.lastChannel()
	ch.push(t, protocol.PongFrame{})
	ch.push(t, protocol.TypingFrame{UserID: "bob", IsTyping: true})

	waitFor(t, "dispatch", func() bool { return len(rec.all()) == 1 })
	if _, ok := rec.all()[0].(protocol.TypingFrame); !ok {
		t.Errorf("Expected only the typing frame dispatched, got %T", rec.all()[0])
	}
}

func TestInbound_MalformedFramesAreDiscarded(t *testing.T) {
	dialer := &fakeDialer{}
	rec := &recorder{}
	c := NewConn(testOptions(dialer), rec)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	ch := dialer.lastChannel()
	ch.pushRaw([]byte(`{{{not json`))
	ch.pushRaw([]byte(`{"type":"telemetry"}`))
	ch.push(t, protocol.TypingFrame{UserID: "bob", IsTyping: true})

	waitFor(t, "dispatch", func() bool { return len(rec.all()) == 1 })

	// Bad frames must not tear the connection down.
	if c.State() != StateConnected {
		t.Errorf("Expected connection to survive malformed frames, state %q", c.State())
	}
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("Expected no reconnect after malformed frames, saw %d dials", got)
	}
}

func TestHeartbeat_EmitsPings(t *testing.T) {
	dialer := &fakeDialer{}
	opts := testOptions(dialer)
	opts.HeartbeatInterval = 5 * time.Millisecond
	c := NewConn(opts, nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	ch := dialer.lastChannel()
	waitFor(t, "heartbeat", func() bool {
		for _, f := range ch.frames(t) {
			if _, ok := f.(protocol.PingFrame); ok {
				return true
			}
		}
		return false
	})
}

func TestHeartbeat_StopsAfterDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	opts := testOptions(dialer)
	opts.HeartbeatInterval = 5 * time.Millisecond
	c := NewConn(opts, nil)

	c.Connect("alice")
	waitForState(t, c, StateConnected)
	ch := dialer.lastChannel()

	c.Disconnect()
	time.Sleep(10 * time.Millisecond)
	before := len(ch.frames(t))
	time.Sleep(25 * time.Millisecond)
	if after := len(ch.frames(t)); after != before {
		t.Errorf("Heartbeat kept running after disconnect: %d -> %d frames", before, after)
	}
}

func TestDisconnect_IsIdempotentAndFinal(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConn(testOptions(dialer), nil)

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	c.Disconnect()
	c.Disconnect()

	if c.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %q", c.State())
	}

	// A deliberate disconnect never triggers the reconnect policy.
	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("Expected no reconnect after Disconnect, saw %d dials", got)
	}
}

func TestDisconnect_WithoutConnect(t *testing.T) {
	c := NewConn(testOptions(&fakeDialer{}), nil)
	c.Disconnect() // must not panic
	if c.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %q", c.State())
	}
}

func TestStateChanges_Observed(t *testing.T) {
	dialer := &fakeDialer{failFirst: 1}
	var mu sync.Mutex
	var seen []State
	opts := testOptions(dialer)
	opts.OnStateChange = func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}
	c := NewConn(opts, nil)
	defer c.Disconnect()

	c.Connect("alice")
	waitForState(t, c, StateConnected)

	mu.Lock()
	got := append([]State(nil), seen...)
	mu.Unlock()
	want := []State{StateConnecting, StateReconnecting, StateConnecting, StateConnected}
	if len(got) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected transitions %v, got %v", want, got)
		}
	}
}
