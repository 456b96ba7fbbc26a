package models

import (
	"encoding/json"
	"time"
)

// Protocol event names, room-scoped unless noted.
const (
	EventMessage          = "message"
	EventTyping           = "typing"
	EventMessageFound     = "message_found"
	EventUpdateReactions  = "update_reactions"
	EventEditMessage      = "edit_message"
	EventDeleteMessage    = "delete_message"
	EventMessagesRead     = "messages_read"
	EventUpdateUsers      = "update_users"
	EventChatHistory      = "chat_history"
	EventMoreMessages     = "more_messages"
	EventUserKicked       = "user_kicked"
	EventUserDisconnected = "user_disconnected"
	EventNotification     = "notification"
	EventError            = "error"
)

// Event is the outbound websocket envelope. Only the fields relevant to the
// event type are set.
type Event struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
	NewText      string        `json:"new_text,omitempty"`
	Reactions    ReactionMap   `json:"reactions,omitempty"`
	Reader       string        `json:"reader,omitempty"`
	MessageIDs   []string      `json:"message_ids,omitempty"`
	Username     string        `json:"username,omitempty"`
	IsTyping     bool          `json:"isTyping,omitempty"`
	Users        []RoomUser    `json:"users,omitempty"`
	Room         string        `json:"room,omitempty"`
	RoomName     string        `json:"room_name,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
	Found        *bool         `json:"found,omitempty"`
	HasMore      *bool         `json:"has_more,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Bool returns a pointer for the optional event flags.
func Bool(v bool) *bool { return &v }

// Inbound websocket frame types.
const (
	FrameMessage          = "message"
	FrameTyping           = "typing"
	FrameUserTyping       = "user_typing"
	FrameFindMessage      = "find_message"
	FrameToggleReaction   = "toggle_reaction"
	FrameEditMessage      = "edit_message"
	FrameDeleteMessage    = "delete_message"
	FrameMarkMessagesRead = "mark_messages_read"
	FrameLoadMoreMessages = "load_more_messages"
)

// ClientFrame is the inbound websocket envelope. ReplyTo is left raw because
// clients send either a bare message id or an {id, message} object.
type ClientFrame struct {
	Type          string          `json:"type"`
	Data          string          `json:"data,omitempty"`
	Image         *string         `json:"image,omitempty"`
	Video         *string         `json:"video,omitempty"`
	Gif           *GifAttachment  `json:"gif,omitempty"`
	ReplyTo       json.RawMessage `json:"replyTo,omitempty"`
	MessageID     string          `json:"messageId,omitempty"`
	Emoji         string          `json:"emoji,omitempty"`
	NewText       string          `json:"newText,omitempty"`
	MessageIDs    []string        `json:"message_ids,omitempty"`
	IsTyping      bool            `json:"isTyping,omitempty"`
	LastMessageID string          `json:"last_message_id,omitempty"`
}

// Notification is the in-app notification payload delivered over a live
// connection when the recipient is online somewhere else.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
