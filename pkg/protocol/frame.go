// Package protocol defines the wire frames exchanged with the chat server
// and their JSON codec. Every frame is a newline-free JSON object carrying a
// required "type" discriminator; payloads are decoded exactly once, at the
// transport boundary, into one of the closed set of variants below.
package protocol

import (
	"encoding/json"
	"fmt"

	"Ripple/pkg/models"
)

// FrameType is the wire discriminator of a frame.
type FrameType string

const (
	// FrameMessage carries a chat message (in and out).
	FrameMessage FrameType = "message"
	// FrameUserStatus carries a presence change for one user (inbound).
	FrameUserStatus FrameType = "user_status"
	// FrameTyping carries a typing-indicator change (in and out).
	FrameTyping FrameType = "typing"
	// FrameReaction carries a reaction ledger change (in and out).
	FrameReaction FrameType = "reaction"
	// FrameOnlineUsers carries a full online-presence snapshot (inbound).
	FrameOnlineUsers FrameType = "online_users"
	// FramePing is the outbound heartbeat probe.
	FramePing FrameType = "ping"
	// FramePong is the server's heartbeat acknowledgement.
	FramePong FrameType = "pong"
)

// Frame is the closed interface over the enumerated frame kinds.
type Frame interface {
	FrameType() FrameType
}

// MessageFrame is a new chat message.
type MessageFrame struct {
	Content     string             `json:"content"`
	Sender      string             `json:"sender"`
	MessageType models.MessageKind `json:"messageType"`
	ReplyTo     *models.ReplyRef   `json:"replyTo,omitempty"`
}

// FrameType returns the frame type for MessageFrame.
func (MessageFrame) FrameType() FrameType { return FrameMessage }

// UserStatusFrame is a presence change for a single user.
type UserStatusFrame struct {
	UserID string          `json:"userId"`
	Status models.Presence `json:"status"`
}

// FrameType returns the frame type for UserStatusFrame.
func (UserStatusFrame) FrameType() FrameType { return FrameUserStatus }

// TypingFrame toggles a user's typing indicator.
type TypingFrame struct {
	UserID   string `json:"userId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// FrameType returns the frame type for TypingFrame.
func (TypingFrame) FrameType() FrameType { return FrameTyping }

// ReactionFrame is a reaction ledger change for a single message.
type ReactionFrame struct {
	MessageID int64               `json:"messageId"`
	Reaction  models.ReactionKind `json:"reaction"`
	UserID    string              `json:"userId,omitempty"`
}

// FrameType returns the frame type for ReactionFrame.
func (ReactionFrame) FrameType() FrameType { return FrameReaction }

// OnlineUsersFrame replaces the entire online-presence set.
type OnlineUsersFrame struct {
	Users []string `json:"users"`
}

// FrameType returns the frame type for OnlineUsersFrame.
func (OnlineUsersFrame) FrameType() FrameType { return FrameOnlineUsers }

// PingFrame is the heartbeat probe. It has no payload beyond the type.
type PingFrame struct{}

// FrameType returns the frame type for PingFrame.
func (PingFrame) FrameType() FrameType { return FramePing }

// PongFrame is the heartbeat acknowledgement. It has no payload beyond
// the type.
type PongFrame struct{}

// FrameType returns the frame type for PongFrame.
func (PongFrame) FrameType() FrameType { return FramePong }

// Encode serializes a frame into its JSON envelope, injecting the "type"
// discriminator next to the variant's own fields.
func Encode(f Frame) ([]byte, error) {
	var env any
	switch v := f.(type) {
	case MessageFrame:
		env = struct {
			Type FrameType `json:"type"`
			MessageFrame
		}{FrameMessage, v}
	case UserStatusFrame:
		env = struct {
			Type FrameType `json:"type"`
			UserStatusFrame
		}{FrameUserStatus, v}
	case TypingFrame:
		env = struct {
			Type FrameType `json:"type"`
			TypingFrame
		}{FrameTyping, v}
	case ReactionFrame:
		env = struct {
			Type FrameType `json:"type"`
			ReactionFrame
		}{FrameReaction, v}
	case OnlineUsersFrame:
		env = struct {
			Type FrameType `json:"type"`
			OnlineUsersFrame
		}{FrameOnlineUsers, v}
	case PingFrame:
		env = struct {
			Type FrameType `json:"type"`
		}{FramePing}
	case PongFrame:
		env = struct {
			Type FrameType `json:"type"`
		}{FramePong}
	default:
		return nil, fmt.Errorf("unsupported frame %T", f)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", f.FrameType(), err)
	}
	return data, nil
}

// Decode parses one wire frame. Unknown discriminators and malformed
// payloads are returned as errors; callers are expected to log and discard
// rather than tear the connection down.
func Decode(data []byte) (Frame, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch head.Type {
	case FrameMessage:
		var f MessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", head.Type, err)
		}
		return f, nil
	case FrameUserStatus:
		var f UserStatusFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", head.Type, err)
		}
		return f, nil
	case FrameTyping:
		var f TypingFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", head.Type, err)
		}
		return f, nil
	case FrameReaction:
		var f ReactionFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", head.Type, err)
		}
		return f, nil
	case FrameOnlineUsers:
		var f OnlineUsersFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", head.Type, err)
		}
		return f, nil
	case FramePing:
		return PingFrame{}, nil
	case FramePong:
		return PongFrame{}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", head.Type)
	}
}
