package event

import (
	"encoding/json"
	"fmt"

	"campushub/errors"

	"github.com/go-playground/validator/v10"
)

// Inbound event names accepted on the socket.
const (
	InPing             = "ping"
	InStatusUpdate     = "status_update"
	InJoinRoom         = "join_room"
	InLeaveRoom        = "leave_room"
	InGetOnlineUsers   = "get_online_users"
	InTypingStart      = "typing_start"
	InTypingStop       = "typing_stop"
	InSendMessage      = "send_message"
	InMessageRead      = "message_read"
	InMessageDelivered = "message_delivered"
)

var validate = validator.New()

// Envelope is the raw inbound frame: a discriminant plus an opaque payload.
// The payload shape is validated per event name before anything dispatches.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type StatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=online away busy offline"`
}

type JoinRoom struct {
	RoomID string `json:"roomId" validate:"required"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" validate:"required"`
}

type GetOnlineUsers struct {
	RoomID string `json:"roomId" validate:"omitempty"`
}

// Typing covers typing_start and typing_stop. Clients address either a room
// directly or a conversation partner; exactly one must be present.
type Typing struct {
	RoomID         string `json:"roomId" validate:"required_without=ConversationID,excluded_with=ConversationID"`
	ConversationID string `json:"conversationId" validate:"required_without=RoomID"`
}

type SendMessage struct {
	RecipientID string   `json:"recipientId" validate:"required_without=GroupID,excluded_with=GroupID"`
	GroupID     string   `json:"groupId" validate:"required_without=RecipientID"`
	Content     string   `json:"content" validate:"required,max=4000"`
	MessageType string   `json:"messageType" validate:"omitempty,oneof=text image file link"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,max=512"`
}

type MarkRead struct {
	MessageID      string `json:"messageId" validate:"required,uuid"`
	ConversationID string `json:"conversationId" validate:"omitempty"`
}

type MarkDelivered struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
}

// DecodeInbound unmarshals and validates the payload for the envelope's
// event name. Unknown names and shape violations both map to ErrInvalidEvent
// so the caller can answer with a single error event.
func DecodeInbound(env Envelope) (any, error) {
	var payload any
	switch env.Event {
	case InPing:
		return nil, nil
	case InStatusUpdate:
		payload = &StatusUpdate{}
	case InJoinRoom:
		payload = &JoinRoom{}
	case InLeaveRoom:
		payload = &LeaveRoom{}
	case InGetOnlineUsers:
		payload = &GetOnlineUsers{}
	case InTypingStart, InTypingStop:
		payload = &Typing{}
	case InSendMessage:
		payload = &SendMessage{}
	case InMessageRead:
		payload = &MarkRead{}
	case InMessageDelivered:
		payload = &MarkDelivered{}
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidEvent, env.Event)
	}

	// An absent data field is an empty payload, not a malformed frame;
	// events whose fields are all optional stay valid without it.
	data := env.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidEvent, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidEvent, err)
	}
	return payload, nil
}
