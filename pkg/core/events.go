package core

import "Ripple/pkg/models"

// EventType represents the type of change event emitted by the session.
type EventType string

const (
	// EventTypeMessage represents a message appended to a conversation.
	EventTypeMessage EventType = "message"
	// EventTypeReaction represents a reaction ledger change.
	EventTypeReaction EventType = "reaction"
	// EventTypeTyping represents a typing indicator change.
	EventTypeTyping EventType = "typing"
	// EventTypePresence represents a contact presence change.
	EventTypePresence EventType = "presence"
	// EventTypeOnlineUsers represents a full online-presence snapshot replace.
	EventTypeOnlineUsers EventType = "online_users"
	// EventTypeIdentity represents the active identity being set or cleared.
	EventTypeIdentity EventType = "identity"
)

// Event is the base interface for all session change events. The embedding
// application consumes these to refresh whatever it renders; the session
// itself never blocks on a slow consumer.
type Event interface {
	Type() EventType
}

// MessageEvent is emitted after a message is appended to a conversation.
type MessageEvent struct {
	Message models.Message
}

// Type returns the event type for MessageEvent.
func (MessageEvent) Type() EventType { return EventTypeMessage }

// ReactionEvent is emitted after a message's reaction ledger changes.
type ReactionEvent struct {
	MessageID int64
	Reaction  models.ReactionKind
	UserID    string
}

// Type returns the event type for ReactionEvent.
func (ReactionEvent) Type() EventType { return EventTypeReaction }

// TypingEvent is emitted after a user's typing indicator changes.
type TypingEvent struct {
	UserID   string
	IsTyping bool
}

// Type returns the event type for TypingEvent.
func (TypingEvent) Type() EventType { return EventTypeTyping }

// PresenceEvent is emitted after a contact's presence changes.
type PresenceEvent struct {
	UserID string
	Status models.Presence
}

// Type returns the event type for PresenceEvent.
func (PresenceEvent) Type() EventType { return EventTypePresence }

// OnlineUsersEvent is emitted after the online set is replaced.
type OnlineUsersEvent struct {
	Users []string
}

// Type returns the event type for OnlineUsersEvent.
func (OnlineUsersEvent) Type() EventType { return EventTypeOnlineUsers }

// IdentityEvent is emitted when the active identity is installed, updated,
// or cleared (User is nil after logout).
type IdentityEvent struct {
	User *models.User
}

// Type returns the event type for IdentityEvent.
func (IdentityEvent) Type() EventType { return EventTypeIdentity }
