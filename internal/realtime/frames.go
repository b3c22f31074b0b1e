package realtime

import (
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/relationship"
)

// Frame types.
const (
	FrameSend        = "send"
	FrameTyping      = "typing"
	FrameFriends     = "friends"
	FrameMessage     = "message"
	FrameGlobal      = "global_message"
	FrameSendFailed  = "send_failed"
	FrameRateLimited = "rate_limited"
	FrameError       = "error"
)

// GlobalRoom addresses the public room instead of a conversation.
const GlobalRoom = "global"

// Inbound is a frame sent by the client. Room is GlobalRoom or empty.
type Inbound struct {
	Type           string `json:"type"`
	Room           string `json:"room,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	ClientToken    string `json:"client_token,omitempty"`
}

// FriendsFrame carries a fresh relationship snapshot.
type FriendsFrame struct {
	Type     string                 `json:"type"`
	Snapshot *relationship.Snapshot `json:"snapshot"`
}

// MessageFrame carries a confirmed private message.
type MessageFrame struct {
	Type    string                `json:"type"`
	Message models.PrivateMessage `json:"message"`
}

// GlobalMessageFrame carries a confirmed message of the public room.
type GlobalMessageFrame struct {
	Type    string               `json:"type"`
	Message models.GlobalMessage `json:"message"`
}

// TypingFrame announces that someone is typing in a conversation or the
// public room.
type TypingFrame struct {
	Type           string `json:"type"`
	Room           string `json:"room,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id"`
}

// FailureFrame reports a send that did not go through. The placeholder for
// ClientToken has been rolled back.
type FailureFrame struct {
	Type           string `json:"type"`
	Room           string `json:"room,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ClientToken    string `json:"client_token,omitempty"`
	Error          string `json:"error"`
}

// Typing is the row of a typing broadcast on the feed.
type Typing struct {
	Room           string `json:"room,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id"`
}
