// Package event defines the closed set of events crossing the socket
// boundary, one tagged variant per event name.
package event

import (
	"time"

	"campushub/domain"
)

// Outbound is an event delivered to live connections. Name is the wire
// discriminant placed in the envelope next to the payload.
type Outbound interface {
	Name() string
}

type Connected struct {
	UserID   string          `json:"userId"`
	UserData domain.Identity `json:"userData"`
	Rooms    []string        `json:"rooms"`
}

func (Connected) Name() string { return "connected" }

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Pong) Name() string { return "pong" }

type UserStatusChange struct {
	UserID string        `json:"userId"`
	Status domain.Status `json:"status"`
}

func (UserStatusChange) Name() string { return "user_status_change" }

type UserTyping struct {
	UserID   string `json:"userId"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

func (UserTyping) Name() string { return "user_typing" }

// NewMessage carries the persisted message. Status is recipient-relative:
// the sender sees "sent", everyone reached live sees "delivered".
type NewMessage struct {
	domain.Message
}

func (NewMessage) Name() string { return "new_message" }

type MessageDelivered struct {
	MessageID   string    `json:"messageId"`
	UserID      string    `json:"userId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

func (MessageDelivered) Name() string { return "message_delivered" }

type MessageRead struct {
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (MessageRead) Name() string { return "message_read" }

type RoomJoined struct {
	RoomID string `json:"roomId"`
}

func (RoomJoined) Name() string { return "room_joined" }

type RoomLeft struct {
	RoomID string `json:"roomId"`
}

func (RoomLeft) Name() string { return "room_left" }

type OnlineUsers struct {
	Users []domain.Identity `json:"users"`
}

func (OnlineUsers) Name() string { return "online_users" }

// Error is the single outbound shape for every rejected inbound event.
// It goes to the originating connection only, never to peers.
type Error struct {
	Message string `json:"message"`
}

func (Error) Name() string { return "error" }
