package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"Ripple/pkg/logging"
	"Ripple/pkg/models"
	"Ripple/pkg/protocol"
)

// DefaultConversationID is where inbound messages land when no conversation
// is active. The wire "message" frame carries no conversation id, so the
// server is effectively a single shared room; a default thread keeps those
// messages addressable.
const DefaultConversationID int64 = 1

// Link is the session's outbound dependency: the connection manager as the
// engine sees it. Send never reports delivery back to the caller; a send
// against a non-open channel is dropped and logged by the link itself.
type Link interface {
	Connect(identityID string)
	Disconnect()
	Send(frame protocol.Frame)
}

// SessionStore persists the active identity across restarts. Load returns
// (nil, nil) when no identity has been saved.
type SessionStore interface {
	Load() (*models.User, error)
	Save(user models.User) error
	Clear() error
}

// Draft is the caller-supplied part of a new message; the session assigns
// the id, timestamp, and an empty reaction ledger.
type Draft struct {
	Sender  string
	Content string
	Kind    models.MessageKind
	ReplyTo *models.ReplyRef
}

// Session is the single source of truth for chat state: identity, roster,
// conversations, messages, presence, and typing indicators. It performs no
// I/O itself; the Link and SessionStore collaborators are invoked explicitly
// from its mutation entry points. Mutations arriving from the transport
// goroutine and from local callers are serialized behind a mutex.
type Session struct {
	mu sync.RWMutex

	identity      *models.User
	contacts      map[string]*models.User
	conversations map[int64]*models.Conversation
	messages      map[int64][]*models.Message
	activeConvID  int64
	onlineUsers   map[string]struct{}
	typingUsers   map[string]struct{}

	lastMessageID int64

	link   Link
	store  SessionStore
	events chan Event
	logger *logging.Logger
}

// NewSession creates a session with its collaborators injected. Both link
// and store may be nil (a detached session), which keeps the mutation logic
// testable without a real transport or database.
func NewSession(link Link, store SessionStore) *Session {
	s := &Session{
		contacts:      make(map[string]*models.User),
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]*models.Message),
		onlineUsers:   make(map[string]struct{}),
		typingUsers:   make(map[string]struct{}),
		link:          link,
		store:         store,
		events:        make(chan Event, 100),
	}
	if logger, err := logging.GetLogger("session"); err == nil {
		s.logger = logger
	}
	return s
}

func (s *Session) log(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}

// Events returns the channel of session change events. Events are dropped,
// not queued indefinitely, when the consumer falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.log("Session: dropping %s event, consumer is behind", e.Type())
	}
}

// RestoreIdentity loads a previously saved identity, installs it, and
// triggers a connection. Returns the restored identity, or nil when no
// prior session exists.
func (s *Session) RestoreIdentity() (*models.User, error) {
	if s.store == nil {
		return nil, nil
	}
	user, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved identity: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.identity = user
	s.mu.Unlock()

	s.emit(IdentityEvent{User: user})
	if s.link != nil {
		s.link.Connect(user.ID)
	}
	return user, nil
}

// SetIdentity installs or replaces the active identity, persists it, and
// triggers a connection with the new identifier. This is the session's
// login transition.
func (s *Session) SetIdentity(user models.User) {
	s.mu.Lock()
	u := user
	s.identity = &u
	s.mu.Unlock()

	s.saveIdentity(user)
	s.emit(IdentityEvent{User: &u})
	if s.link != nil {
		s.link.Connect(user.ID)
	}
}

// SetIdentityName synthesizes a guest identity from a bare display name and
// installs it: fresh identifier, online status, current timestamp.
func (s *Session) SetIdentityName(name string) models.User {
	user := models.User{
		ID:         uuid.NewString(),
		Name:       name,
		Status:     models.PresenceOnline,
		LastActive: time.Now(),
	}
	s.SetIdentity(user)
	return user
}

func (s *Session) saveIdentity(user models.User) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(user); err != nil {
		s.log("Session: failed to persist identity: %v", err)
	}
}

// Identity returns a copy of the active identity, or nil when logged out.
func (s *Session) Identity() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	u := *s.identity
	return &u
}

// IsAuthenticated reports whether an identity is installed.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// nextMessageID hands out identifiers that sort by recency. Wall-clock
// milliseconds alone can collide under rapid sends, so the counter never
// moves backwards.
func (s *Session) nextMessageID() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastMessageID {
		id = s.lastMessageID + 1
	}
	s.lastMessageID = id
	return id
}

// AddMessage appends a message to the named conversation, creating the
// conversation if it is not yet known locally. A message whose sender is
// the active identity is applied optimistically and forwarded to the link;
// whether the frame actually leaves depends on the connection state.
func (s *Session) AddMessage(conversationID int64, draft Draft) models.Message {
	s.mu.Lock()
	transmit := s.identity != nil && draft.Sender == s.identity.ID
	msg := s.applyMessage(conversationID, draft)
	s.mu.Unlock()

	s.emit(MessageEvent{Message: msg})
	if transmit && s.link != nil {
		s.link.Send(protocol.MessageFrame{
			Content:     msg.Content,
			Sender:      msg.Sender,
			MessageType: msg.Kind,
			ReplyTo:     msg.ReplyTo,
		})
	}
	return msg
}

// applyMessage is the shared append path for local and remote messages.
// Caller holds s.mu.
func (s *Session) applyMessage(conversationID int64, draft Draft) models.Message {
	kind := draft.Kind
	if kind == "" {
		kind = models.MessageText
	}

	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &models.Conversation{
			ID:    conversationID,
			Label: fmt.Sprintf("Conversation %d", conversationID),
			Kind:  models.ConversationDirect,
		}
		s.conversations[conversationID] = conv
	}

	msg := &models.Message{
		ID:             s.nextMessageID(),
		ConversationID: conversationID,
		Sender:         draft.Sender,
		Content:        draft.Content,
		Kind:           kind,
		Timestamp:      time.Now(),
		ReplyTo:        draft.ReplyTo,
		Reactions:      models.Reactions{Likes: []string{}, Dislikes: []string{}},
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)

	conv.LastPreview = msg.Content
	conv.LastActivity = msg.Timestamp
	return *msg
}

// UpdateUserStatus sets a contact's presence, creating the contact if it is
// not yet in the roster.
func (s *Session) UpdateUserStatus(userID string, status models.Presence) {
	if !status.Valid() {
		s.log("Session: ignoring unknown presence %q for user %s", status, userID)
		return
	}

	s.mu.Lock()
	contact, ok := s.contacts[userID]
	if !ok {
		contact = &models.User{ID: userID, Name: userID}
		s.contacts[userID] = contact
	}
	contact.Status = status
	contact.LastActive = time.Now()
	s.mu.Unlock()

	s.emit(PresenceEvent{UserID: userID, Status: status})
}

// SetUserTyping toggles a user's membership in the typing set. A change for
// the active identity is also forwarded so the counterpart sees it.
func (s *Session) SetUserTyping(userID string, isTyping bool) {
	s.applyTyping(userID, isTyping)

	s.mu.RLock()
	transmit := s.identity != nil && userID == s.identity.ID
	s.mu.RUnlock()

	if transmit && s.link != nil {
		s.link.Send(protocol.TypingFrame{UserID: userID, IsTyping: isTyping})
	}
}

// UpdateMessageReaction locates the message across all conversations and
// applies the reaction: userID joins the named set and leaves the other, so
// a user is never in both sets of one message. A reaction by the active
// identity is also forwarded to the link.
func (s *Session) UpdateMessageReaction(messageID int64, reaction models.ReactionKind, userID string) {
	if !s.applyReaction(messageID, reaction, userID) {
		return
	}

	s.mu.RLock()
	transmit := s.identity != nil && userID == s.identity.ID
	s.mu.RUnlock()

	if transmit && s.link != nil {
		s.link.Send(protocol.ReactionFrame{MessageID: messageID, Reaction: reaction, UserID: userID})
	}
}

// findMessage scans all conversations for a message id. Caller holds s.mu.
func (s *Session) findMessage(messageID int64) *models.Message {
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID == messageID {
				return m
			}
		}
	}
	return nil
}

func addToSet(set []string, userID string) []string {
	for _, id := range set {
		if id == userID {
			return set
		}
	}
	return append(set, userID)
}

func removeFromSet(set []string, userID string) []string {
	for i, id := range set {
		if id == userID {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}

// UpdateOnlineUsers replaces the entire online set with the given snapshot.
// This is a full replace, not a merge.
func (s *Session) UpdateOnlineUsers(users []string) {
	s.mu.Lock()
	s.onlineUsers = make(map[string]struct{}, len(users))
	for _, id := range users {
		s.onlineUsers[id] = struct{}{}
	}
	s.mu.Unlock()

	s.emit(OnlineUsersEvent{Users: append([]string(nil), users...)})
}

// Logout disconnects the link, clears the persisted identity, and resets
// all session state to its initial empty form.
func (s *Session) Logout() {
	if s.link != nil {
		s.link.Disconnect()
	}
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			s.log("Session: failed to clear persisted identity: %v", err)
		}
	}

	s.mu.Lock()
	s.identity = nil
	s.contacts = make(map[string]*models.User)
	s.conversations = make(map[int64]*models.Conversation)
	s.messages = make(map[int64][]*models.Message)
	s.onlineUsers = make(map[string]struct{})
	s.typingUsers = make(map[string]struct{})
	s.activeConvID = 0
	s.mu.Unlock()

	s.emit(IdentityEvent{User: nil})
}

// HandleFrame is the inbound dispatch entry point used by the connection
// manager. Remote-origin mutations are applied without re-transmission, so
// an echoed copy of the session's own message can never loop back out.
func (s *Session) HandleFrame(frame protocol.Frame) {
	switch f := frame.(type) {
	case protocol.MessageFrame:
		s.mu.Lock()
		conversationID := s.activeConvID
		if conversationID == 0 {
			conversationID = DefaultConversationID
		}
		msg := s.applyMessage(conversationID, Draft{
			Sender:  f.Sender,
			Content: f.Content,
			Kind:    f.MessageType,
			ReplyTo: f.ReplyTo,
		})
		s.mu.Unlock()
		s.emit(MessageEvent{Message: msg})

	case protocol.UserStatusFrame:
		s.UpdateUserStatus(f.UserID, f.Status)

	case protocol.TypingFrame:
		s.applyTyping(f.UserID, f.IsTyping)

	case protocol.ReactionFrame:
		s.applyReaction(f.MessageID, f.Reaction, f.UserID)

	case protocol.OnlineUsersFrame:
		s.UpdateOnlineUsers(f.Users)

	case protocol.PongFrame:
		// Heartbeat acknowledgement, nothing to do.

	default:
		s.log("Session: unhandled frame type %q", frame.FrameType())
	}
}

// applyTyping performs the typing-set mutation shared by the local and the
// remote-origin paths.
func (s *Session) applyTyping(userID string, isTyping bool) {
	s.mu.Lock()
	if isTyping {
		s.typingUsers[userID] = struct{}{}
	} else {
		delete(s.typingUsers, userID)
	}
	s.mu.Unlock()
	s.emit(TypingEvent{UserID: userID, IsTyping: isTyping})
}

// applyReaction performs the ledger mutation shared by the local and the
// remote-origin paths. Reports whether a mutation was applied.
func (s *Session) applyReaction(messageID int64, reaction models.ReactionKind, userID string) bool {
	if !reaction.Valid() {
		s.log("Session: ignoring unknown reaction %q for message %d", reaction, messageID)
		return false
	}

	s.mu.Lock()
	msg := s.findMessage(messageID)
	if msg == nil {
		s.mu.Unlock()
		s.log("Session: reaction for unknown message %d dropped", messageID)
		return false
	}
	switch reaction {
	case models.ReactionLikes:
		msg.Reactions.Likes = addToSet(msg.Reactions.Likes, userID)
		msg.Reactions.Dislikes = removeFromSet(msg.Reactions.Dislikes, userID)
	case models.ReactionDislikes:
		msg.Reactions.Dislikes = addToSet(msg.Reactions.Dislikes, userID)
		msg.Reactions.Likes = removeFromSet(msg.Reactions.Likes, userID)
	}
	s.mu.Unlock()

	s.emit(ReactionEvent{MessageID: messageID, Reaction: reaction, UserID: userID})
	return true
}

// SetActiveConversation selects which conversation the derived message view
// follows. The selection is local UI state and is never shared.
func (s *Session) SetActiveConversation(conversationID int64) {
	s.mu.Lock()
	s.activeConvID = conversationID
	s.mu.Unlock()
}

// ActiveConversation returns the current selection, 0 when none is active.
func (s *Session) ActiveConversation() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeConvID
}

// CurrentMessages returns the active conversation's message sequence in
// append order, or an empty slice when no conversation is active.
func (s *Session) CurrentMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeConvID == 0 {
		return []models.Message{}
	}
	return copyMessages(s.messages[s.activeConvID])
}

// Messages returns the message sequence of one conversation in append order.
func (s *Session) Messages(conversationID int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[conversationID])
}

func copyMessages(msgs []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

// Contacts returns the roster sorted by display name.
func (s *Session) Contacts() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Conversations returns all known conversations, most recently active first.
func (s *Session) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out
}

// OnlineUsers returns the current online set, sorted for stable iteration.
func (s *Session) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.onlineUsers))
	for id := range s.onlineUsers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsTyping reports whether a user is currently in the typing set.
func (s *Session) IsTyping(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.typingUsers[userID]
	return ok
}
