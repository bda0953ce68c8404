package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the per-recipient view of how far a message travelled.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

// Message is the durable chat record. Exactly one of GroupID and RecipientID
// is set. SenderID is empty for system-generated messages.
type Message struct {
	ID          uuid.UUID      `json:"id"`
	SenderID    string         `json:"senderId,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	RecipientID string         `json:"recipientId,omitempty"`
	Content     string         `json:"content"`
	MessageType string         `json:"messageType"`
	Attachments []string       `json:"attachments,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	Status      DeliveryStatus `json:"status"`
	// DeliveredTo and ReadBy accumulate recipient identity IDs. For direct
	// messages they hold at most the single recipient.
	DeliveredTo []string `json:"deliveredTo,omitempty"`
	ReadBy      []string `json:"readBy,omitempty"`
}

// Room returns the fan-out target this message belongs to.
func (m Message) Room() Room {
	if m.GroupID != "" {
		return GroupRoom(m.GroupID)
	}
	return ConversationRoom(m.SenderID, m.RecipientID)
}
