// Package models defines the data models for the chat client.
package models

import "time"

// Presence represents a user's availability status.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAway    Presence = "away"
	PresenceBusy    Presence = "busy"
)

// Valid reports whether p is one of the known presence values.
func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceOffline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}

// User is a chat participant: either the session's own identity or a
// roster contact. Only the active identity is ever persisted.
type User struct {
	ID         string    `gorm:"primarykey" json:"id"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar"`
	Status     Presence  `json:"status"`
	LastActive time.Time `json:"lastActive"`
}

// TableName overrides the table name used by User to 'identities'.
func (User) TableName() string {
	return "identities"
}

// ConversationKind distinguishes direct chats from group chats.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation represents an addressable message thread.
type Conversation struct {
	ID           int64            `json:"id"`
	Label        string           `json:"label"`
	Kind         ConversationKind `json:"kind"`
	Members      []string         `json:"members"`
	LastPreview  string           `json:"lastPreview"`
	LastActivity time.Time        `json:"lastActivity"`
}

// MessageKind is the content type of a message.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageFile  MessageKind = "file"
	MessageVoice MessageKind = "voice"
)

// ReplyRef is a snapshot of the message being replied to, copied at send
// time. It is not a live link: later mutations of the original message do
// not propagate into it.
type ReplyRef struct {
	ID      int64       `json:"id"`
	Sender  string      `json:"sender"`
	Content string      `json:"content"`
	Kind    MessageKind `json:"type"`
}

// ReactionKind names one of the two reaction sets on a message.
type ReactionKind string

const (
	ReactionLikes    ReactionKind = "likes"
	ReactionDislikes ReactionKind = "dislikes"
)

// Valid reports whether k is one of the known reaction kinds.
func (k ReactionKind) Valid() bool {
	return k == ReactionLikes || k == ReactionDislikes
}

// Reactions is the reaction ledger of a message: which users liked it and
// which disliked it. A user id appears in at most one of the two sets.
type Reactions struct {
	Likes    []string `json:"likes"`
	Dislikes []string `json:"dislikes"`
}

// Message is an immutable content unit once created; the reaction ledger
// is the only field mutated afterwards.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversationId"`
	Sender         string      `json:"sender"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	ReplyTo        *ReplyRef   `json:"replyTo,omitempty"`
	Reactions      Reactions   `json:"reactions"`
}
