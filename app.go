// Package main is the entry point for the Ripple chat client.
package main

import (
	"context"
	"fmt"
	"log"

	"Ripple/pkg/core"
	"Ripple/pkg/db"
	"Ripple/pkg/logging"
	"Ripple/pkg/mock"
	"Ripple/pkg/models"
	"Ripple/pkg/protocol"
	"Ripple/pkg/ws"
)

// App wires the session state engine, the connection manager, and the
// persistence adapter together and exposes the operations a presentation
// layer calls. Rendering itself stays outside: consumers observe state
// through the event subscription and the snapshot accessors.
type App struct {
	ctx     context.Context
	session *core.Session
	conn    *ws.Conn
	store   *db.Store

	onEvent     func(core.Event)
	onConnState func(ws.State)
}

// NewApp builds the client from its configuration. Recognized keys:
// "server" (websocket URL), "mock" (bool, offline simulation), "db_path",
// and the connection tuning knobs "heartbeat", "reconnect_delay",
// "reconnect_attempts".
func NewApp(cfg core.Config) (*App, error) {
	a := &App{}

	var store *db.Store
	var err error
	if path, ok := cfg.GetString("db_path"); ok {
		store, err = db.Open(path)
	} else {
		store, err = db.OpenDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a.store = store

	serverURL, ok := cfg.GetString("server")
	if !ok {
		serverURL = "ws://localhost:8080/ws"
	}

	opts := ws.Options{
		URL:           serverURL,
		OnStateChange: a.handleConnState,
	}
	if useMock, _ := cfg.GetBool("mock"); useMock {
		opts.Dialer = mock.Dialer{}
	}
	if d, ok := cfg.GetDuration("heartbeat"); ok {
		opts.HeartbeatInterval = d
	}
	if d, ok := cfg.GetDuration("reconnect_delay"); ok {
		opts.ReconnectDelay = d
	}
	if n, ok := cfg.GetInt("reconnect_attempts"); ok {
		opts.MaxReconnectAttempts = n
	}

	// The app itself is the dispatcher so the connection manager and the
	// session can be constructed without a cycle between them.
	a.conn = ws.NewConn(opts, a)
	a.session = core.NewSession(a.conn, store)
	return a, nil
}

// HandleFrame forwards decoded inbound frames to the session.
func (a *App) HandleFrame(frame protocol.Frame) {
	a.session.HandleFrame(frame)
}

func (a *App) handleConnState(s ws.State) {
	if a.onConnState != nil {
		a.onConnState(s)
	}
}

// Subscribe registers the consumer of session change events. Must be called
// before Startup.
func (a *App) Subscribe(fn func(core.Event)) {
	a.onEvent = fn
}

// SubscribeConnectionState registers the observer of connection state
// transitions. Must be called before Startup.
func (a *App) SubscribeConnectionState(fn func(ws.State)) {
	a.onConnState = fn
}

// Startup restores a persisted identity, connecting automatically when one
// exists, and starts pumping session events to the subscriber until ctx is
// cancelled.
func (a *App) Startup(ctx context.Context) error {
	a.ctx = ctx

	go func() {
		for {
			select {
			case e := <-a.session.Events():
				if a.onEvent != nil {
					a.onEvent(e)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	user, err := a.session.RestoreIdentity()
	if err != nil {
		return err
	}
	if user != nil {
		log.Printf("restored session for %s", user.Name)
	}
	return nil
}

// Shutdown disconnects and releases resources. The session state is left
// intact so a persisted identity survives into the next start.
func (a *App) Shutdown() {
	a.conn.Disconnect()
	logging.CloseAllLoggers()
}

// --- Operations exposed to the presentation layer ---

// IsAuthenticated reports whether an identity is installed.
func (a *App) IsAuthenticated() bool {
	return a.session.IsAuthenticated()
}

// Login installs a fully-formed identity and connects with it.
func (a *App) Login(user models.User) {
	a.session.SetIdentity(user)
}

// LoginGuest synthesizes a guest identity from a display name and connects.
func (a *App) LoginGuest(name string) models.User {
	return a.session.SetIdentityName(name)
}

// Logout disconnects and resets the whole session, including the persisted
// identity.
func (a *App) Logout() {
	a.session.Logout()
}

// Reconnect explicitly restarts the connection, which is the only way out
// of the failed state.
func (a *App) Reconnect() error {
	identity := a.session.Identity()
	if identity == nil {
		return fmt.Errorf("not logged in")
	}
	a.conn.Connect(identity.ID)
	return nil
}

// ConnectionState returns the connection manager's current state.
func (a *App) ConnectionState() ws.State {
	return a.conn.State()
}

// SendMessage appends a message from the active identity to a conversation.
// The local view updates immediately; delivery depends on the connection.
func (a *App) SendMessage(conversationID int64, content string) (models.Message, error) {
	return a.sendMessage(conversationID, content, nil)
}

// ReplyTo appends a message carrying a snapshot of the replied-to message.
func (a *App) ReplyTo(conversationID int64, content string, replyTo models.ReplyRef) (models.Message, error) {
	return a.sendMessage(conversationID, content, &replyTo)
}

func (a *App) sendMessage(conversationID int64, content string, replyTo *models.ReplyRef) (models.Message, error) {
	identity := a.session.Identity()
	if identity == nil {
		return models.Message{}, fmt.Errorf("not logged in")
	}
	msg := a.session.AddMessage(conversationID, core.Draft{
		Sender:  identity.ID,
		Content: content,
		Kind:    models.MessageText,
		ReplyTo: replyTo,
	})
	return msg, nil
}

// React applies the active identity's reaction to a message.
func (a *App) React(messageID int64, reaction models.ReactionKind) error {
	identity := a.session.Identity()
	if identity == nil {
		return fmt.Errorf("not logged in")
	}
	a.session.UpdateMessageReaction(messageID, reaction, identity.ID)
	return nil
}

// SetTyping publishes the active identity's typing indicator.
func (a *App) SetTyping(isTyping bool) error {
	identity := a.session.Identity()
	if identity == nil {
		return fmt.Errorf("not logged in")
	}
	a.session.SetUserTyping(identity.ID, isTyping)
	return nil
}

// SelectConversation switches the active conversation; the selection is
// local UI state.
func (a *App) SelectConversation(conversationID int64) {
	a.session.SetActiveConversation(conversationID)
}

// CurrentMessages returns the active conversation's messages.
func (a *App) CurrentMessages() []models.Message {
	return a.session.CurrentMessages()
}

// Contacts returns the roster.
func (a *App) Contacts() []models.User {
	return a.session.Contacts()
}

// Conversations returns all known conversations, most recent first.
func (a *App) Conversations() []models.Conversation {
	return a.session.Conversations()
}

// OnlineUsers returns the current online set.
func (a *App) OnlineUsers() []string {
	return a.session.OnlineUsers()
}
